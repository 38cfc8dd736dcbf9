package auth0

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-accounts"
)

// TokenValidator validates Auth0-issued JWTs using JWKS.
type TokenValidator struct {
	config    Config
	validator *validator.Validator
}

// NewTokenValidator creates a new Auth0 token validator.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	issuer := cfg.issuerURL()
	if issuer == "" {
		return nil, fmt.Errorf("auth0: issuer or domain is required")
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme == "" || issuerURL.Host == "" {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %s", issuer)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	provider := jwks.NewCachingProvider(issuerURL, cacheTTL)

	customClaims := cfg.CustomClaims
	if customClaims == nil {
		customClaims = func() validator.CustomClaims {
			return &CustomClaims{}
		}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		cfg.Audience,
		validator.WithCustomClaims(customClaims),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create validator: %w", err)
	}

	return &TokenValidator{
		config:    cfg,
		validator: jwtValidator,
	}, nil
}

// Verify validates tokenString and returns the identity it was issued to.
// The email is only set when the token carries an email claim.
func (v *TokenValidator) Verify(ctx context.Context, tokenString string) (*accounts.Identity, error) {
	token, err := v.validator.ValidateToken(contextOrBackground(ctx), tokenString)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	validatedClaims, ok := token.(*validator.ValidatedClaims)
	if !ok || validatedClaims == nil || validatedClaims.RegisteredClaims.Subject == "" {
		return nil, accounts.NewError(accounts.ErrTokenInvalid, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "missing subject",
		})
	}

	identity := &accounts.Identity{
		ID: validatedClaims.RegisteredClaims.Subject,
	}
	if custom, ok := validatedClaims.CustomClaims.(*CustomClaims); ok && custom != nil {
		identity.Email = custom.Email
	}

	return identity, nil
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	reason := "malformed"
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		reason = "expired"
	}

	return accounts.NewError(accounts.ErrTokenInvalid, err, map[string]any{
		"provider": ProviderName,
		"reason":   reason,
		"cause":    err.Error(),
	})
}
