package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-accounts/provider/auth0"
	"github.com/goliatone/go-accounts/provider/local"
	"github.com/goliatone/go-errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderLocal = "local"
	ProviderAuth0 = "auth0"
)

// Config is the accountsd configuration. Values are loaded from
// config/app.json and can be overridden with ACCOUNTS_* environment
// variables.
type Config struct {
	Server      Server      `koanf:"server" json:"server"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Provider    Provider    `koanf:"provider" json:"provider"`
	Local       Local       `koanf:"local" json:"local"`
	Auth0       Auth0       `koanf:"auth0" json:"auth0"`
	Features    Features    `koanf:"features" json:"features"`
}

type Server struct {
	Address   string `koanf:"address" json:"address" env:"ACCOUNTS_SERVER_ADDRESS"`
	AppName   string `koanf:"app_name" json:"app_name" env:"ACCOUNTS_SERVER_APP_NAME"`
	BodyLimit int    `koanf:"body_limit" json:"body_limit" env:"ACCOUNTS_SERVER_BODY_LIMIT"`
	Debug     bool   `koanf:"debug" json:"debug" env:"ACCOUNTS_SERVER_DEBUG"`
}

type Persistence struct {
	Driver                string `koanf:"driver" json:"driver" env:"ACCOUNTS_PERSISTENCE_DRIVER"`
	DSN                   string `koanf:"dsn" json:"dsn" env:"ACCOUNTS_PERSISTENCE_DSN"`
	Migrate               bool   `koanf:"migrate" json:"migrate" env:"ACCOUNTS_PERSISTENCE_MIGRATE"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout" env:"ACCOUNTS_PERSISTENCE_PING_TIMEOUT"`
	Debug                 bool   `koanf:"debug" json:"debug" env:"ACCOUNTS_PERSISTENCE_DEBUG"`
	OtelIdentifier        string `koanf:"otel_identifier" json:"otel_identifier" env:"ACCOUNTS_PERSISTENCE_OTEL_IDENTIFIER"`
}

type Provider struct {
	Kind                          string `koanf:"kind" json:"kind" env:"ACCOUNTS_PROVIDER_KIND"`
	CallTimeoutExpression         string `koanf:"call_timeout" json:"call_timeout" env:"ACCOUNTS_PROVIDER_CALL_TIMEOUT"`
	CompensationTimeoutExpression string `koanf:"compensation_timeout" json:"compensation_timeout" env:"ACCOUNTS_PROVIDER_COMPENSATION_TIMEOUT"`
	RequireRefreshToken           bool   `koanf:"require_refresh_token" json:"require_refresh_token" env:"ACCOUNTS_PROVIDER_REQUIRE_REFRESH_TOKEN"`
}

type Local struct {
	SigningKey           string   `koanf:"signing_key" json:"signing_key" env:"ACCOUNTS_LOCAL_SIGNING_KEY"`
	Issuer               string   `koanf:"issuer" json:"issuer" env:"ACCOUNTS_LOCAL_ISSUER"`
	Audience             []string `koanf:"audience" json:"audience" env:"ACCOUNTS_LOCAL_AUDIENCE"`
	AccessTTLExpression  string   `koanf:"access_ttl" json:"access_ttl" env:"ACCOUNTS_LOCAL_ACCESS_TTL"`
	RefreshTTLExpression string   `koanf:"refresh_ttl" json:"refresh_ttl" env:"ACCOUNTS_LOCAL_REFRESH_TTL"`
	BcryptCost           int      `koanf:"bcrypt_cost" json:"bcrypt_cost" env:"ACCOUNTS_LOCAL_BCRYPT_COST"`
	DeterministicIDs     bool     `koanf:"deterministic_ids" json:"deterministic_ids" env:"ACCOUNTS_LOCAL_DETERMINISTIC_IDS"`
}

type Auth0 struct {
	Domain             string `koanf:"domain" json:"domain" env:"ACCOUNTS_AUTH0_DOMAIN"`
	ClientID           string `koanf:"client_id" json:"client_id" env:"ACCOUNTS_AUTH0_CLIENT_ID"`
	ClientSecret       string `koanf:"client_secret" json:"client_secret" env:"ACCOUNTS_AUTH0_CLIENT_SECRET"`
	Connection         string `koanf:"connection" json:"connection" env:"ACCOUNTS_AUTH0_CONNECTION"`
	Audience           string `koanf:"audience" json:"audience" env:"ACCOUNTS_AUTH0_AUDIENCE"`
	Scope              string `koanf:"scope" json:"scope" env:"ACCOUNTS_AUTH0_SCOPE"`
	CacheTTLExpression string `koanf:"cache_ttl" json:"cache_ttl" env:"ACCOUNTS_AUTH0_CACHE_TTL"`
}

type Features struct {
	SignupEnabled bool `koanf:"signup_enabled" json:"signup_enabled" env:"ACCOUNTS_FEATURES_SIGNUP_ENABLED"`
}

// Defaults returns the configuration used before app.json is applied.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Address:   ":8572",
			AppName:   "accountsd",
			BodyLimit: 1 * 1024 * 1024,
		},
		Persistence: Persistence{
			Driver:                DriverSQLite,
			DSN:                   "file:accounts.db?cache=shared",
			Migrate:               true,
			PingTimeoutExpression: "5s",
			OtelIdentifier:        "accountsd",
		},
		Provider: Provider{
			Kind:                          ProviderLocal,
			CallTimeoutExpression:         "10s",
			CompensationTimeoutExpression: "10s",
		},
		Local: Local{
			Issuer:               "go-accounts",
			AccessTTLExpression:  "1h",
			RefreshTTLExpression: "720h",
			BcryptCost:           local.DefaultBcryptCost,
		},
		Auth0: Auth0{
			Connection:         auth0.DefaultConnection,
			Scope:              auth0.DefaultScope,
			CacheTTLExpression: "5m",
		},
		Features: Features{
			SignupEnabled: true,
		},
	}
}

// LoadEnv applies ACCOUNTS_* environment overrides on top of c.
func (c *Config) LoadEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to parse environment overrides")
	}
	return nil
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Persistence),
		validation.Field(&c.Provider),
	)
	if err != nil {
		return err
	}

	switch c.Provider.Kind {
	case ProviderLocal:
		return c.Local.Validate()
	case ProviderAuth0:
		return c.Auth0.Validate()
	}
	return nil
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.BodyLimit, validation.Min(0)),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(durationRule)),
	)
}

func (p Provider) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Kind, validation.Required, validation.In(ProviderLocal, ProviderAuth0)),
		validation.Field(&p.CallTimeoutExpression, validation.By(durationRule)),
		validation.Field(&p.CompensationTimeoutExpression, validation.By(durationRule)),
	)
}

func (l Local) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.SigningKey, validation.Required),
		validation.Field(&l.AccessTTLExpression, validation.By(durationRule)),
		validation.Field(&l.RefreshTTLExpression, validation.By(durationRule)),
	)
}

func (a Auth0) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Domain, validation.Required),
		validation.Field(&a.ClientID, validation.Required),
		validation.Field(&a.ClientSecret, validation.Required),
		validation.Field(&a.Audience, validation.Required),
		validation.Field(&a.CacheTTLExpression, validation.By(durationRule)),
	)
}

func (p Persistence) GetPingTimeout() time.Duration {
	return mustDuration(p.PingTimeoutExpression, 5*time.Second)
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

// GetServer returns the DSN.
func (p Persistence) GetServer() string {
	return p.DSN
}

func (p Persistence) GetOtelIdentifier() string {
	return p.OtelIdentifier
}

func (p Provider) GetCallTimeout() time.Duration {
	return mustDuration(p.CallTimeoutExpression, 10*time.Second)
}

func (p Provider) GetCompensationTimeout() time.Duration {
	return mustDuration(p.CompensationTimeoutExpression, 10*time.Second)
}

// ProviderConfig maps the local section into a local.Config.
func (l Local) ProviderConfig() local.Config {
	return local.Config{
		SigningKey:       l.SigningKey,
		Issuer:           l.Issuer,
		Audience:         l.Audience,
		AccessTTL:        mustDuration(l.AccessTTLExpression, local.DefaultAccessTTL),
		RefreshTTL:       mustDuration(l.RefreshTTLExpression, local.DefaultRefreshTTL),
		BcryptCost:       l.BcryptCost,
		DeterministicIDs: l.DeterministicIDs,
	}
}

// ProviderConfig maps the auth0 section into an auth0.IdentityProviderConfig.
func (a Auth0) ProviderConfig() auth0.IdentityProviderConfig {
	return auth0.IdentityProviderConfig{
		Domain:       a.Domain,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Connection:   a.Connection,
		Audience:     a.Audience,
		Scope:        a.Scope,
		Token: auth0.Config{
			Domain:   a.Domain,
			Audience: []string{a.Audience},
			CacheTTL: mustDuration(a.CacheTTLExpression, auth0.DefaultCacheTTL),
		},
	}
}

var errInvalidDuration = validation.NewError(
	"validation_invalid_duration",
	"must be a valid duration such as 5s or 1h30m, got {{.value}}",
)

func durationRule(value any) error {
	expr, _ := value.(string)
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := time.ParseDuration(expr); err != nil {
		return errInvalidDuration.SetParams(map[string]any{"value": expr})
	}
	return nil
}

// mustDuration parses expr, empty expressions fall back to def. Invalid
// expressions are rejected by Validate so they panic here.
func mustDuration(expr string, def time.Duration) time.Duration {
	if strings.TrimSpace(expr) == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", expr),
		)
	}
	return dur
}
