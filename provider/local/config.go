package local

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTTL  = 1 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultBcryptCost = 12
)

// Config holds the local provider settings.
type Config struct {
	// SigningKey signs access and refresh tokens (HS256).
	SigningKey string
	Issuer     string
	Audience   []string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// BcryptCost defaults to DefaultBcryptCost.
	BcryptCost int

	// DeterministicIDs derives identity ids from the email using hashid.
	DeterministicIDs bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(signingKey string) Config {
	return Config{
		SigningKey: signingKey,
		Issuer:     "go-accounts",
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
		BcryptCost: DefaultBcryptCost,
	}
}

func (c Config) withDefaults() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = DefaultBcryptCost
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return errors.New("local provider signing key is required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return errors.New("local provider bcrypt cost out of range", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"cost": c.BcryptCost})
	}
	return nil
}
