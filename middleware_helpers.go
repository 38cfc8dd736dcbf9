package accounts

import (
	"github.com/goliatone/go-router"
)

// Middleware returns a router middleware that runs the guard for every
// request. On success the bound session and principal are attached to the
// request context and locals, on failure errorHandler renders the error.
func (g *AccessGuard) Middleware(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, g.opts.logger, err)
		}
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := g.Authenticate(
				ctx.Context(),
				ctx.GetString(router.HeaderAuthorization, ""),
				ctx.GetString(HeaderRefreshToken, ""),
			)
			if err != nil {
				return errorHandler(ctx, err)
			}

			ctx.Locals(LocalsPrincipalKey, session.Principal)
			ctx.SetContext(WithSessionContext(ctx.Context(), session))

			return ctx.Next()
		}
	}
}
