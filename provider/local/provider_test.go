package local

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type sqliteConfig struct{}

func (sqliteConfig) GetDebug() bool { return false }
func (sqliteConfig) GetDriver() string { return "sqlite" }
func (sqliteConfig) GetServer() string { return ":memory:" }
func (sqliteConfig) GetPingTimeout() time.Duration { return time.Second }
func (sqliteConfig) GetOtelIdentifier() string { return "" }

func setupProvider(t *testing.T, mutate ...func(*Config)) (*Provider, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	client, err := persistence.New(sqliteConfig{}, sqldb, sqlitedialect.New())
	require.NoError(t, err)
	db := client.DB()
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, accounts.Migrate(context.Background(), client, nil, Migrations()))

	cfg := DefaultConfig("test-signing-key")
	cfg.BcryptCost = bcrypt.MinCost
	for _, fn := range mutate {
		fn(&cfg)
	}

	p, err := New(db, cfg)
	require.NoError(t, err)
	return p, db
}

func TestMigrationsCoverEveryDialect(t *testing.T) {
	src := Migrations()
	for _, dialect := range accounts.MigrationDialects {
		up, err := fs.Glob(src.FS, dialect+"/*_local_identities.up.sql")
		require.NoError(t, err)
		assert.Len(t, up, 1, dialect)

		down, err := fs.Glob(src.FS, dialect+"/*_local_identities.down.sql")
		require.NoError(t, err)
		assert.Len(t, down, 1, dialect)
	}
}

func TestNewRequiresSigningKey(t *testing.T) {
	_, err := New(&bun.DB{}, Config{})
	require.Error(t, err)
}

func TestProviderRegisterAndAuthenticate(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	identity, err := p.Register(ctx, "  Alice@Example.com ", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, identity.ID)
	assert.Equal(t, "alice@example.com", identity.Email)
	require.NotNil(t, identity.Session)
	assert.NotEmpty(t, identity.AccessToken())
	assert.NotEmpty(t, identity.RefreshToken())

	logged, err := p.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, logged.ID)
	assert.NotEmpty(t, logged.AccessToken())
}

func TestProviderRegisterDuplicateEmail(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "bob@example.com", "Secret123")
	require.NoError(t, err)

	_, err = p.Register(ctx, "BOB@example.com", "Other456")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeDuplicateIdentity))
	assert.Equal(t, accounts.KindConflict, accounts.KindOf(err))
}

func TestProviderAuthenticateFailures(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "carol@example.com", "Secret123")
	require.NoError(t, err)

	_, err = p.Authenticate(ctx, "carol@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidCredentials))

	_, err = p.Authenticate(ctx, "nobody@example.com", "Secret123")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidCredentials))
}

func TestProviderAuthenticateUnknownEmailStillComparesHash(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "grace@example.com", "Secret123")
	require.NoError(t, err)

	var hashes []string
	p.compare = func(password, hash string) error {
		hashes = append(hashes, hash)
		return ComparePasswordAndHash(password, hash)
	}

	_, err = p.Authenticate(ctx, "nobody@example.com", "Secret123")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidCredentials))
	require.Len(t, hashes, 1)
	assert.Equal(t, p.dummyHash, hashes[0])

	cost, err := bcrypt.Cost([]byte(p.dummyHash))
	require.NoError(t, err)
	assert.Equal(t, p.cfg.BcryptCost, cost)

	_, err = p.Authenticate(ctx, "grace@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidCredentials))
	require.Len(t, hashes, 2)
	assert.NotEqual(t, p.dummyHash, hashes[1])
}

func TestProviderVerifyToken(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	identity, err := p.Register(ctx, "dave@example.com", "Secret123")
	require.NoError(t, err)

	verified, err := p.VerifyToken(ctx, identity.AccessToken())
	require.NoError(t, err)
	assert.Equal(t, identity.ID, verified.ID)
	assert.Equal(t, "dave@example.com", verified.Email)

	_, err = p.VerifyToken(ctx, identity.RefreshToken())
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeTokenInvalid))

	_, err = p.VerifyToken(ctx, "not-a-jwt")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeTokenInvalid))

	require.NoError(t, p.DeleteIdentity(ctx, identity.ID))

	_, err = p.VerifyToken(ctx, identity.AccessToken())
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeTokenInvalid))
}

func TestProviderBindSession(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	alice, err := p.Register(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	bob, err := p.Register(ctx, "bob@example.com", "Secret123")
	require.NoError(t, err)

	verified, err := p.VerifyToken(ctx, alice.AccessToken())
	require.NoError(t, err)

	session, err := p.BindSession(ctx, *alice.Session, verified)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, session.Principal.ID)
	assert.Equal(t, alice.AccessToken(), session.AccessToken)
	assert.Equal(t, alice.RefreshToken(), session.RefreshToken)

	mixed := accounts.Session{
		AccessToken:  alice.AccessToken(),
		RefreshToken: bob.RefreshToken(),
	}
	_, err = p.BindSession(ctx, mixed, verified)
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeTokenInvalid))

	noRefresh := accounts.Session{AccessToken: alice.AccessToken()}
	session, err = p.BindSession(ctx, noRefresh, verified)
	require.NoError(t, err)
	assert.Empty(t, session.RefreshToken)
}

func TestProviderUpdateCredentials(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	identity, err := p.Register(ctx, "erin@example.com", "Secret123")
	require.NoError(t, err)

	session := &accounts.SessionContext{
		Principal:    accounts.Principal{ID: identity.ID, Email: identity.Email},
		AccessToken:  identity.AccessToken(),
		RefreshToken: identity.RefreshToken(),
	}

	email := "Erin.New@example.com"
	password := "NewSecret456"
	updated, err := p.UpdateCredentials(ctx, session, accounts.CredentialsPatch{
		Email:    &email,
		Password: &password,
	})
	require.NoError(t, err)
	assert.Equal(t, identity.ID, updated.ID)
	assert.Equal(t, "erin.new@example.com", updated.Email)

	_, err = p.Authenticate(ctx, "erin@example.com", "Secret123")
	require.Error(t, err)

	logged, err := p.Authenticate(ctx, "erin.new@example.com", "NewSecret456")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, logged.ID)
}

func TestProviderUpdateCredentialsRejectsForeignSession(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	alice, err := p.Register(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	bob, err := p.Register(ctx, "bob@example.com", "Secret123")
	require.NoError(t, err)

	password := "Hijack123"
	_, err = p.UpdateCredentials(ctx, &accounts.SessionContext{
		Principal:   accounts.Principal{ID: bob.ID},
		AccessToken: alice.AccessToken(),
	}, accounts.CredentialsPatch{Password: &password})
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeUnauthorized))

	_, err = p.UpdateCredentials(ctx, nil, accounts.CredentialsPatch{Password: &password})
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeUnauthorized))
}

func TestProviderUpdateCredentialsDuplicateEmail(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "taken@example.com", "Secret123")
	require.NoError(t, err)
	identity, err := p.Register(ctx, "frank@example.com", "Secret123")
	require.NoError(t, err)

	email := "taken@example.com"
	_, err = p.UpdateCredentials(ctx, &accounts.SessionContext{
		Principal:   accounts.Principal{ID: identity.ID},
		AccessToken: identity.AccessToken(),
	}, accounts.CredentialsPatch{Email: &email})
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeDuplicateIdentity))
}

func TestProviderDeleteIdentity(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	identity, err := p.Register(ctx, "gina@example.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, p.DeleteIdentity(ctx, identity.ID))

	err = p.DeleteIdentity(ctx, identity.ID)
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeIdentityNotFound))

	_, err = p.Authenticate(ctx, "gina@example.com", "Secret123")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidCredentials))
}

func TestProviderDeterministicIDs(t *testing.T) {
	p, _ := setupProvider(t, func(c *Config) {
		c.DeterministicIDs = true
	})

	identity, err := p.Register(context.Background(), "hank@example.com", "Secret123")
	require.NoError(t, err)

	expected, err := hashid.NewUUID("hank@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected.String(), identity.ID)
}
