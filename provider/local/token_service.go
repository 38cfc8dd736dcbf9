package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims issued by the local provider.
type Claims struct {
	jwt.RegisteredClaims
	Email     string    `json:"email,omitempty"`
	TokenType TokenType `json:"typ"`
}

// TokenService issues and validates HS256 session tokens.
type TokenService struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config) *TokenService {
	cfg = cfg.withDefaults()
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		audience:   jwt.ClaimStrings(cfg.Audience),
		now:        time.Now,
	}
}

// Issue signs a new access/refresh pair for the identity.
func (ts *TokenService) Issue(identityID, email string) (*accounts.Session, error) {
	now := ts.now()

	access, err := ts.sign(identityID, email, TokenTypeAccess, now, ts.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.sign(identityID, email, TokenTypeRefresh, now, ts.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &accounts.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(ts.accessTTL).UTC(),
	}, nil
}

func (ts *TokenService) sign(identityID, email string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identityID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     email,
		TokenType: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Validate parses tokenString and checks it is of the expected type.
func (ts *TokenService) Validate(tokenString string, expected TokenType) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return nil, accounts.NewError(accounts.ErrTokenInvalid, err, map[string]any{
			"provider": ProviderName,
			"reason":   reason,
		})
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, accounts.NewError(accounts.ErrTokenInvalid, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "invalid claims",
		})
	}

	if claims.TokenType != expected {
		return nil, accounts.NewError(accounts.ErrTokenInvalid, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "unexpected token type",
			"expected": string(expected),
		})
	}

	return claims, nil
}
