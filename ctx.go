package accounts

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}
var sessionCtxKey = &contextKey{"session"}

// LocalsPrincipalKey is the router locals key the guard middleware uses.
const LocalsPrincipalKey = "principal"

type contextKey struct {
	name string
}

// WithPrincipal sets the authenticated principal in the given context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext returns the principal for the current request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}

// WithSessionContext stores the request scoped session context and its
// principal.
func WithSessionContext(ctx context.Context, session *SessionContext) context.Context {
	if session == nil {
		return ctx
	}
	ctx = WithPrincipal(ctx, session.Principal)
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext returns the session context bound by the guard.
func SessionFromContext(ctx context.Context) (*SessionContext, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionCtxKey).(*SessionContext)
	return s, ok && s != nil
}
