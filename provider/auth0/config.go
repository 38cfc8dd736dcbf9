package auth0

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
)

const (
	DefaultConnection = "Username-Password-Authentication"
	DefaultScope      = "openid profile email offline_access"
	DefaultCacheTTL   = 5 * time.Minute
)

// Config holds Auth0 configuration for token validation.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// Audience is the API identifier(s) to validate against.
	Audience []string

	// Issuer overrides the default issuer URL (optional).
	// Default: "https://{Domain}/".
	Issuer string

	// CacheTTL is how long to cache JWKS keys.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// CustomClaims defines custom claim types to extract.
	CustomClaims func() validator.CustomClaims
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(domain string, audience []string) Config {
	return Config{
		Domain:   domain,
		Audience: audience,
		CacheTTL: DefaultCacheTTL,
	}
}

// IdentityProviderConfig configures the Auth0 identity provider.
type IdentityProviderConfig struct {
	// Domain is the tenant domain used by the management and
	// authentication APIs.
	Domain string

	// ClientID is the M2M application client ID.
	ClientID string

	// ClientSecret is the M2M application client secret.
	ClientSecret string

	// Connection is the database connection users are created in. It is
	// also used as the password grant realm.
	Connection string

	// Audience requested on login, it must match Token.Audience.
	Audience string

	Scope string

	// Token configures access token verification. Domain and Audience
	// default to the provider values.
	Token Config
}

func (c IdentityProviderConfig) withDefaults() IdentityProviderConfig {
	if c.Connection == "" {
		c.Connection = DefaultConnection
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.Token.Domain == "" && c.Token.Issuer == "" {
		c.Token.Domain = c.Domain
	}
	if len(c.Token.Audience) == 0 && c.Audience != "" {
		c.Token.Audience = []string{c.Audience}
	}
	return c
}

// Validate checks the configuration.
func (c IdentityProviderConfig) Validate() error {
	if strings.TrimSpace(c.Domain) == "" {
		return fmt.Errorf("auth0: domain is required")
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("auth0: client id and secret are required")
	}
	return nil
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return issuer
	}
	if strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
