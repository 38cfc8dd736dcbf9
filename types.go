package accounts

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the logging contract used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityProvider owns credentials and session issuance. Identities are
// keyed by an opaque id that is shared with the ProfileStore.
type IdentityProvider interface {
	// Register creates a new identity and returns it with a fresh session.
	Register(ctx context.Context, email, password string) (*Identity, error)
	// Authenticate verifies credentials and returns the identity with a session.
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	// UpdateCredentials mutates the identity bound to session.
	UpdateCredentials(ctx context.Context, session *SessionContext, patch CredentialsPatch) (*Identity, error)
	// DeleteIdentity removes the identity using operator level credentials.
	DeleteIdentity(ctx context.Context, id string) error
	// VerifyToken validates an access token and resolves its identity.
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// SessionBinder is implemented by providers whose session model needs both
// tokens before user scoped calls are trusted. The returned context is owned
// by a single request.
type SessionBinder interface {
	BindSession(ctx context.Context, session Session, identity *Identity) (*SessionContext, error)
}

// ProfileStore persists profiles keyed by identity id.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, id, username string) (*Profile, error)
	Update(ctx context.Context, id string, patch ProfilePatch) (*Profile, error)
	Delete(ctx context.Context, id string) error
}

// Session holds the tokens issued for an identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Identity is the provider side record of an account.
type Identity struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Session *Session `json:"session,omitempty"`
}

// AccessToken returns the session access token, if any.
func (i *Identity) AccessToken() string {
	if i == nil || i.Session == nil {
		return ""
	}
	return i.Session.AccessToken
}

// RefreshToken returns the session refresh token, if any.
func (i *Identity) RefreshToken() string {
	if i == nil || i.Session == nil {
		return ""
	}
	return i.Session.RefreshToken
}

// Principal is the identity authenticated for the lifetime of one request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// SessionContext is the isolated provider context for one request. It is
// never stored on a provider.
type SessionContext struct {
	Principal    Principal
	AccessToken  string
	RefreshToken string
}

// CredentialsPatch carries optional credential changes.
type CredentialsPatch struct {
	Email    *string
	Password *string
}

// Empty reports whether the patch changes nothing.
func (p CredentialsPatch) Empty() bool {
	return p.Email == nil && p.Password == nil
}

// ProfilePatch carries optional profile changes.
type ProfilePatch struct {
	Username *string
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccountRecord is returned after a credential update.
type AccountRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UsernameRecord is returned after a profile update.
type UsernameRecord struct {
	Username string `json:"username"`
}

// DeleteResult is returned after an account is removed.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func newAuthResult(identity *Identity, profile *Profile) *AuthResult {
	return &AuthResult{
		ID:           identity.ID,
		Email:        identity.Email,
		Username:     profile.Username,
		AccessToken:  identity.AccessToken(),
		RefreshToken: identity.RefreshToken(),
	}
}

// defLogger prints to stdout. Args are key/value pairs, never format verbs.
type defLogger struct {
	out io.Writer
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args...)
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args...)
}

func (d defLogger) print(level, msg string, args ...any) {
	out := d.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, "["+level+"] ACCOUNTS "+joinKV(strings.TrimRight(msg, "\n"), args...))
}

// joinKV appends args to msg as key=value pairs. A trailing key without a
// value is kept as is.
func joinKV(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 >= len(args) {
			b.WriteString(fmt.Sprint(args[i]))
			break
		}
		b.WriteString(fmt.Sprint(args[i]))
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(args[i+1]))
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
