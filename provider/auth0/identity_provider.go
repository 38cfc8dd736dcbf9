package auth0

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/auth0/go-auth0/management"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
)

// ProviderName identifies the Auth0 provider in error metadata.
const ProviderName = "auth0"

// DefaultCleanupTimeout bounds the delete issued when login fails right
// after a user was created.
const DefaultCleanupTimeout = 10 * time.Second

type userManager interface {
	Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error
	Read(ctx context.Context, id string, opts ...management.RequestOption) (*management.User, error)
	Update(ctx context.Context, id string, u *management.User, opts ...management.RequestOption) error
	Delete(ctx context.Context, id string, opts ...management.RequestOption) error
}

type passwordLogin interface {
	LoginWithPassword(ctx context.Context, body oauth.LoginWithPasswordRequest, validationOptions oauth.IDTokenValidationOptions, opts ...authentication.RequestOption) (*oauth.TokenSet, error)
}

type userInfoFetcher interface {
	UserInfo(ctx context.Context, accessToken string, opts ...authentication.RequestOption) (*authentication.UserInfoResponse, error)
}

type tokenVerifier interface {
	Verify(ctx context.Context, token string) (*accounts.Identity, error)
}

// IdentityProvider implements accounts.IdentityProvider backed by Auth0.
type IdentityProvider struct {
	config   IdentityProviderConfig
	users    userManager
	login    passwordLogin
	userInfo userInfoFetcher
	tokens   tokenVerifier
	logger   accounts.Logger
	now      func() time.Time
}

var _ accounts.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider creates an Auth0-backed identity provider.
func NewIdentityProvider(ctx context.Context, cfg IdentityProviderConfig) (*IdentityProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	mgmt, err := management.New(
		cfg.Domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "auth0: failed to create management client")
	}

	authAPI, err := authentication.New(
		ctx,
		cfg.Domain,
		authentication.WithClientID(cfg.ClientID),
		authentication.WithClientSecret(cfg.ClientSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "auth0: failed to create authentication client")
	}

	validator, err := NewTokenValidator(cfg.Token)
	if err != nil {
		return nil, err
	}

	return newIdentityProvider(cfg, mgmt.User, authAPI.OAuth, authAPI, validator), nil
}

func newIdentityProvider(cfg IdentityProviderConfig, users userManager, login passwordLogin, info userInfoFetcher, tokens tokenVerifier) *IdentityProvider {
	return &IdentityProvider{
		config:   cfg.withDefaults(),
		users:    users,
		login:    login,
		userInfo: info,
		tokens:   tokens,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// WithLogger sets the provider logger
func (p *IdentityProvider) WithLogger(logger accounts.Logger) *IdentityProvider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Register creates the user in the configured connection and logs in to
// obtain a session. When the login fails the user is deleted again so
// nothing is left behind.
func (p *IdentityProvider) Register(ctx context.Context, email, password string) (*accounts.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := &management.User{
		Connection: auth0.String(p.config.Connection),
		Email:      auth0.String(email),
		Password:   auth0.String(password),
	}

	if err := p.users.Create(ctx, user); err != nil {
		return nil, managementError(err, "register")
	}

	id := user.GetID()
	if id == "" {
		return nil, accounts.NewError(accounts.ErrProviderUnavailable, nil, map[string]any{
			"provider":  ProviderName,
			"operation": "register",
			"reason":    "empty user id",
		})
	}

	identity, err := p.passwordLogin(ctx, email, password)
	if err != nil {
		p.cleanup(ctx, id)
		return nil, err
	}

	identity.ID = id
	return identity, nil
}

func (p *IdentityProvider) Authenticate(ctx context.Context, email, password string) (*accounts.Identity, error) {
	return p.passwordLogin(ctx, strings.ToLower(strings.TrimSpace(email)), password)
}

// UpdateCredentials updates the session principal. Auth0 rejects email and
// password changes in one request, so they are sent separately.
func (p *IdentityProvider) UpdateCredentials(ctx context.Context, session *accounts.SessionContext, patch accounts.CredentialsPatch) (*accounts.Identity, error) {
	if session == nil || session.Principal.ID == "" {
		return nil, accounts.NewError(accounts.ErrUnauthorized, nil, map[string]any{
			"provider": ProviderName,
		})
	}
	id := session.Principal.ID

	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if err := p.users.Update(ctx, id, &management.User{
			Email: auth0.String(email),
		}); err != nil {
			return nil, managementError(err, "update_email")
		}
	}

	if patch.Password != nil {
		if err := p.users.Update(ctx, id, &management.User{
			Password: auth0.String(*patch.Password),
		}); err != nil {
			return nil, managementError(err, "update_password")
		}
	}

	user, err := p.users.Read(ctx, id)
	if err != nil {
		return nil, managementError(err, "read_user")
	}

	return &accounts.Identity{
		ID:    user.GetID(),
		Email: user.GetEmail(),
	}, nil
}

func (p *IdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.users.Delete(ctx, id); err != nil {
		return managementError(err, "delete_identity")
	}
	return nil
}

func (p *IdentityProvider) VerifyToken(ctx context.Context, token string) (*accounts.Identity, error) {
	identity, err := p.tokens.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if identity.Email == "" {
		user, err := p.users.Read(ctx, identity.ID)
		if err != nil {
			if hasStatus(err, http.StatusNotFound) {
				return nil, accounts.NewError(accounts.ErrTokenInvalid, err, map[string]any{
					"provider": ProviderName,
					"reason":   "unknown subject",
				})
			}
			return nil, managementError(err, "verify_token")
		}
		identity.Email = user.GetEmail()
	}

	return identity, nil
}

func (p *IdentityProvider) passwordLogin(ctx context.Context, email, password string) (*accounts.Identity, error) {
	tokens, err := p.login.LoginWithPassword(ctx, oauth.LoginWithPasswordRequest{
		Username: email,
		Password: password,
		Realm:    p.config.Connection,
		Scope:    p.config.Scope,
		Audience: p.config.Audience,
	}, oauth.IDTokenValidationOptions{})
	if err != nil {
		return nil, authenticationError(err)
	}

	info, err := p.userInfo.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, authenticationError(err)
	}

	if info.Email != "" {
		email = info.Email
	}

	return &accounts.Identity{
		ID:    info.Sub,
		Email: email,
		Session: &accounts.Session{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresAt:    p.now().Add(time.Duration(tokens.ExpiresIn) * time.Second).UTC(),
		},
	}, nil
}

func (p *IdentityProvider) cleanup(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultCleanupTimeout)
	defer cancel()

	if err := p.users.Delete(ctx, id); err != nil {
		p.logger.Error("auth0: failed to delete user after login failure", "id", id, "error", err)
		return
	}
	p.logger.Warn("auth0: deleted user after login failure", "id", id)
}

type statusError interface {
	Status() int
}

func hasStatus(err error, status int) bool {
	var sErr statusError
	return errors.As(err, &sErr) && sErr.Status() == status
}

func managementError(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	metadata := map[string]any{
		"provider":  ProviderName,
		"operation": operation,
	}

	var sErr statusError
	if errors.As(err, &sErr) {
		metadata["status"] = sErr.Status()
		switch sErr.Status() {
		case http.StatusConflict:
			return accounts.NewError(accounts.ErrDuplicateIdentity, err, metadata)
		case http.StatusBadRequest:
			return accounts.NewError(accounts.ErrInvalidInput, err, metadata)
		case http.StatusNotFound:
			return accounts.NewError(accounts.ErrIdentityNotFound, err, metadata)
		}
	}

	return accounts.NewError(accounts.ErrProviderUnavailable, err, metadata)
}

func authenticationError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	metadata := map[string]any{
		"provider": ProviderName,
	}

	if strings.Contains(err.Error(), "invalid_grant") {
		return accounts.NewError(accounts.ErrInvalidCredentials, err, metadata)
	}

	var sErr statusError
	if errors.As(err, &sErr) {
		metadata["status"] = sErr.Status()
		switch sErr.Status() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return accounts.NewError(accounts.ErrInvalidCredentials, err, metadata)
		}
	}

	return accounts.NewError(accounts.ErrProviderUnavailable, err, metadata)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
