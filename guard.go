package accounts

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// GuardState is the progress of one request through the AccessGuard.
type GuardState string

const (
	GuardUnauthenticated GuardState = "unauthenticated"
	GuardTokenExtracted  GuardState = "token_extracted"
	GuardVerified        GuardState = "verified"
	GuardBound           GuardState = "bound"
)

const bearerScheme = "Bearer"

var errMissingBearer = errors.New("missing or malformed bearer token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

var errMissingRefreshToken = errors.New("missing refresh token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// AccessGuard verifies bearer tokens and builds a SessionContext owned by a
// single request. Nothing is stored on the provider, so concurrent requests
// never observe each other's session.
type AccessGuard struct {
	provider IdentityProvider
	opts     options
}

// NewAccessGuard returns a guard verifying tokens with provider.
func NewAccessGuard(provider IdentityProvider, opts ...Option) *AccessGuard {
	return &AccessGuard{
		provider: provider,
		opts:     newOptions(opts...),
	}
}

// Authenticate takes the raw Authorization header value and the optional
// refresh token and returns the bound session. Every failure is reported as
// ErrUnauthorized.
func (g *AccessGuard) Authenticate(ctx context.Context, authorization, refreshToken string) (*SessionContext, error) {
	state := GuardUnauthenticated

	token, err := ExtractBearerToken(authorization)
	if err != nil {
		return nil, g.reject(state, err)
	}
	state = GuardTokenExtracted

	refreshToken = strings.TrimSpace(refreshToken)
	if g.opts.requireRefreshToken && refreshToken == "" {
		return nil, g.reject(state, errMissingRefreshToken)
	}

	identity, err := g.verify(ctx, token)
	if err != nil {
		return nil, g.reject(state, err)
	}
	state = GuardVerified

	session, err := g.bind(ctx, identity, token, refreshToken)
	if err != nil {
		return nil, g.reject(state, err)
	}

	g.opts.logger.Debug("access guard bound session", "state", GuardBound, "principal", session.Principal.ID)

	return session, nil
}

func (g *AccessGuard) verify(ctx context.Context, token string) (*Identity, error) {
	callCtx, cancel := g.opts.withCallTimeout(ctx)
	defer cancel()

	identity, err := g.provider.VerifyToken(callCtx, token)
	if err != nil {
		return nil, err
	}
	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		return nil, NewError(ErrTokenInvalid, nil, map[string]any{"reason": "no principal"})
	}
	return identity, nil
}

func (g *AccessGuard) bind(ctx context.Context, identity *Identity, token, refreshToken string) (*SessionContext, error) {
	binder, ok := g.provider.(SessionBinder)
	if !ok {
		return &SessionContext{
			Principal:    Principal{ID: identity.ID, Email: identity.Email},
			AccessToken:  token,
			RefreshToken: refreshToken,
		}, nil
	}

	callCtx, cancel := g.opts.withCallTimeout(ctx)
	defer cancel()

	session, err := binder.BindSession(callCtx, Session{
		AccessToken:  token,
		RefreshToken: refreshToken,
	}, identity)
	if err != nil {
		return nil, err
	}

	if session == nil || session.Principal.ID != identity.ID {
		return nil, NewError(ErrTokenInvalid, nil, map[string]any{"reason": "session principal mismatch"})
	}

	return session, nil
}

func (g *AccessGuard) reject(state GuardState, cause error) error {
	g.opts.logger.Debug("access guard rejected request", "state", state, "error", cause)
	return NewError(ErrUnauthorized, cause, map[string]any{
		"guard_state": string(state),
	})
}

// ExtractBearerToken returns the token of an "Authorization: Bearer" value.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	l := len(bearerScheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], bearerScheme) || header[l] != ' ' {
		return "", errMissingBearer
	}

	token := strings.TrimSpace(header[l+1:])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", errMissingBearer
	}
	return token, nil
}
