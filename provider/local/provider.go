package local

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderName identifies the local provider in error metadata.
const ProviderName = "local"

// Provider stores identities in the local_identities table.
type Provider struct {
	credentials Credentials
	tokens      *TokenService
	cfg         Config
	logger      accounts.Logger
	now         func() time.Time
	compare     func(password, hash string) error
	// dummyHash is compared against when the email is unknown so both
	// failure paths pay the bcrypt cost.
	dummyHash string
}

var (
	_ accounts.IdentityProvider = (*Provider)(nil)
	_ accounts.SessionBinder    = (*Provider)(nil)
)

// New creates a local identity provider.
func New(db *bun.DB, cfg Config) (*Provider, error) {
	if db == nil {
		return nil, errors.New("local provider requires a database", errors.CategoryValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	dummy, err := HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &Provider{
		credentials: NewCredentialsRepository(db),
		tokens:      NewTokenService(cfg),
		cfg:         cfg,
		logger:      noopLogger{},
		now:         time.Now,
		compare:     ComparePasswordAndHash,
		dummyHash:   dummy,
	}, nil
}

// WithLogger sets the provider logger
func (p *Provider) WithLogger(logger accounts.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Tokens exposes the token service, mostly useful in tests.
func (p *Provider) Tokens() *TokenService {
	return p.tokens
}

func (p *Provider) Register(ctx context.Context, email, password string) (*accounts.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, accounts.NewError(accounts.ErrInvalidInput, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "empty email",
		})
	}

	hash, err := HashPassword(password, p.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	record := &Credential{
		ID:           p.newID(email),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	created, err := p.credentials.Create(ctx, record)
	if err != nil {
		if repository.IsDuplicatedKey(err) || accounts.IsUniqueViolation(err) {
			return nil, accounts.NewError(accounts.ErrDuplicateIdentity, err, map[string]any{
				"provider": ProviderName,
			})
		}
		return nil, p.storeError(err, "register")
	}

	p.logger.Debug("local identity registered", "id", created.ID.String())

	return p.issue(created)
}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (*accounts.Identity, error) {
	record, err := p.credentials.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			_ = p.compare(password, p.dummyHash)
			return nil, accounts.NewError(accounts.ErrInvalidCredentials, nil, map[string]any{
				"provider": ProviderName,
			})
		}
		return nil, p.storeError(err, "authenticate")
	}

	if err := p.compare(password, record.PasswordHash); err != nil {
		return nil, err
	}

	return p.issue(record)
}

// UpdateCredentials changes the email and/or password of the identity that
// owns the session. The session access token must still be valid.
func (p *Provider) UpdateCredentials(ctx context.Context, session *accounts.SessionContext, patch accounts.CredentialsPatch) (*accounts.Identity, error) {
	if session == nil || session.Principal.ID == "" {
		return nil, accounts.NewError(accounts.ErrUnauthorized, nil, map[string]any{
			"provider": ProviderName,
		})
	}

	claims, err := p.tokens.Validate(session.AccessToken, TokenTypeAccess)
	if err != nil {
		return nil, accounts.NewError(accounts.ErrUnauthorized, err, map[string]any{
			"provider": ProviderName,
		})
	}
	if claims.Subject != session.Principal.ID {
		return nil, accounts.NewError(accounts.ErrUnauthorized, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "session subject mismatch",
		})
	}

	record, err := p.credentials.GetByIdentifier(ctx, session.Principal.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, accounts.NewError(accounts.ErrIdentityNotFound, err, map[string]any{
				"provider": ProviderName,
				"id":       session.Principal.ID,
			})
		}
		return nil, p.storeError(err, "update_credentials")
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return nil, accounts.NewError(accounts.ErrInvalidInput, nil, map[string]any{
				"provider": ProviderName,
				"reason":   "empty email",
			})
		}
		record.Email = email
	}

	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password, p.cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		record.PasswordHash = hash
	}

	now := p.now().UTC()
	record.UpdatedAt = &now

	updated, err := p.credentials.Update(ctx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		if repository.IsDuplicatedKey(err) || accounts.IsUniqueViolation(err) {
			return nil, accounts.NewError(accounts.ErrDuplicateIdentity, err, map[string]any{
				"provider": ProviderName,
			})
		}
		return nil, p.storeError(err, "update_credentials")
	}

	return &accounts.Identity{
		ID:    updated.ID.String(),
		Email: updated.Email,
	}, nil
}

func (p *Provider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.credentials.DeleteByID(ctx, id); err != nil {
		if repository.IsRecordNotFound(err) {
			return accounts.NewError(accounts.ErrIdentityNotFound, err, map[string]any{
				"provider": ProviderName,
				"id":       id,
			})
		}
		return p.storeError(err, "delete_identity")
	}
	return nil
}

// VerifyToken validates an access token and resolves the identity it
// belongs to. Tokens for deleted identities are rejected.
func (p *Provider) VerifyToken(ctx context.Context, token string) (*accounts.Identity, error) {
	claims, err := p.tokens.Validate(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	record, err := p.credentials.GetByIdentifier(ctx, claims.Subject)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, accounts.NewError(accounts.ErrTokenInvalid, err, map[string]any{
				"provider": ProviderName,
				"reason":   "unknown subject",
			})
		}
		return nil, p.storeError(err, "verify_token")
	}

	return &accounts.Identity{
		ID:    record.ID.String(),
		Email: record.Email,
	}, nil
}

// BindSession checks the refresh token, when present, belongs to the same
// identity as the verified access token.
func (p *Provider) BindSession(ctx context.Context, session accounts.Session, identity *accounts.Identity) (*accounts.SessionContext, error) {
	if identity == nil || identity.ID == "" {
		return nil, accounts.NewError(accounts.ErrTokenInvalid, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "missing identity",
		})
	}

	if session.RefreshToken != "" {
		claims, err := p.tokens.Validate(session.RefreshToken, TokenTypeRefresh)
		if err != nil {
			return nil, err
		}
		if claims.Subject != identity.ID {
			return nil, accounts.NewError(accounts.ErrTokenInvalid, nil, map[string]any{
				"provider": ProviderName,
				"reason":   "refresh token subject mismatch",
			})
		}
	}

	return &accounts.SessionContext{
		Principal: accounts.Principal{
			ID:    identity.ID,
			Email: identity.Email,
		},
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, nil
}

func (p *Provider) issue(record *Credential) (*accounts.Identity, error) {
	session, err := p.tokens.Issue(record.ID.String(), record.Email)
	if err != nil {
		return nil, err
	}

	return &accounts.Identity{
		ID:      record.ID.String(),
		Email:   record.Email,
		Session: session,
	}, nil
}

func (p *Provider) newID(email string) uuid.UUID {
	if p.cfg.DeterministicIDs {
		id, err := hashid.NewUUID(email)
		if err == nil {
			return id
		}
		p.logger.Warn("hashid failed, falling back to random id", "error", err)
	}
	return uuid.New()
}

func (p *Provider) storeError(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return accounts.NewError(accounts.ErrProviderUnavailable, err, map[string]any{
		"provider":  ProviderName,
		"operation": operation,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
