package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "case insensitive scheme", header: "bearer token", want: "token"},
		{name: "surrounding spaces", header: "  Bearer token  ", want: "token"},
		{name: "empty", header: "", wantErr: true},
		{name: "scheme only", header: "Bearer", wantErr: true},
		{name: "scheme and space", header: "Bearer ", wantErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "no separator", header: "Bearertoken", wantErr: true},
		{name: "two tokens", header: "Bearer one two", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tc.header)
			if tc.wantErr {
				require.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAccessGuardAuthenticate(t *testing.T) {
	provider := new(MockProvider)
	provider.On("VerifyToken", mock.Anything, "good-token").
		Return(&Identity{ID: "id-1", Email: "alice@example.com"}, nil)

	guard := NewAccessGuard(provider)

	session, err := guard.Authenticate(context.Background(), "Bearer good-token", "refresh-1")
	require.NoError(t, err)

	assert.Equal(t, Principal{ID: "id-1", Email: "alice@example.com"}, session.Principal)
	assert.Equal(t, "good-token", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
}

func TestAccessGuardFailuresAreUnauthorized(t *testing.T) {
	cases := []struct {
		name   string
		header string
		setup  func(p *MockProvider)
	}{
		{
			name:   "missing header",
			header: "",
			setup:  func(p *MockProvider) {},
		},
		{
			name:   "provider rejects token",
			header: "Bearer bad-token",
			setup: func(p *MockProvider) {
				p.On("VerifyToken", mock.Anything, "bad-token").
					Return(nil, NewError(ErrTokenInvalid, nil, map[string]any{"reason": "expired"}))
			},
		},
		{
			name:   "provider unavailable",
			header: "Bearer some-token",
			setup: func(p *MockProvider) {
				p.On("VerifyToken", mock.Anything, "some-token").Return(nil, assert.AnError)
			},
		},
		{
			name:   "identity without id",
			header: "Bearer empty-token",
			setup: func(p *MockProvider) {
				p.On("VerifyToken", mock.Anything, "empty-token").Return(&Identity{}, nil)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := new(MockProvider)
			tc.setup(provider)

			session, err := NewAccessGuard(provider).Authenticate(context.Background(), tc.header, "")
			require.Error(t, err)
			assert.Nil(t, session)
			assert.True(t, HasTextCode(err, TextCodeUnauthorized))
			assert.Equal(t, KindUnauthorized, KindOf(err))
		})
	}
}

func TestAccessGuardRefreshTokenRequired(t *testing.T) {
	provider := new(MockProvider)

	guard := NewAccessGuard(provider, WithRefreshTokenRequired(true))

	_, err := guard.Authenticate(context.Background(), "Bearer good-token", "  ")
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeUnauthorized))

	provider.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestAccessGuardUsesSessionBinder(t *testing.T) {
	provider := new(MockBindingProvider)
	identity := &Identity{ID: "id-1", Email: "alice@example.com"}

	provider.On("VerifyToken", mock.Anything, "access").Return(identity, nil)
	provider.On("BindSession", mock.Anything, Session{AccessToken: "access", RefreshToken: "refresh"}, identity).
		Return(&SessionContext{
			Principal:    Principal{ID: "id-1", Email: "alice@example.com"},
			AccessToken:  "access",
			RefreshToken: "refresh",
		}, nil).Once()

	session, err := NewAccessGuard(provider).Authenticate(context.Background(), "Bearer access", "refresh")
	require.NoError(t, err)
	assert.Equal(t, "id-1", session.Principal.ID)
	provider.AssertExpectations(t)
}

func TestAccessGuardBinderMismatchIsUnauthorized(t *testing.T) {
	cases := []struct {
		name    string
		session *SessionContext
		err     error
	}{
		{
			name:    "binder error",
			session: nil,
			err:     NewError(ErrTokenInvalid, nil, map[string]any{"reason": "refresh token subject mismatch"}),
		},
		{
			name: "different principal",
			session: &SessionContext{
				Principal: Principal{ID: "someone-else"},
			},
		},
		{
			name:    "no session",
			session: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := new(MockBindingProvider)
			identity := &Identity{ID: "id-1"}

			provider.On("VerifyToken", mock.Anything, "access").Return(identity, nil)
			provider.On("BindSession", mock.Anything, mock.Anything, identity).Return(tc.session, tc.err)

			_, err := NewAccessGuard(provider).Authenticate(context.Background(), "Bearer access", "refresh")
			require.Error(t, err)
			assert.True(t, HasTextCode(err, TextCodeUnauthorized))
		})
	}
}

func TestAccessGuardConcurrentRequestsAreIsolated(t *testing.T) {
	provider := new(MockProvider)
	provider.On("VerifyToken", mock.Anything, "token-a").
		Run(func(args mock.Arguments) { time.Sleep(5 * time.Millisecond) }).
		Return(&Identity{ID: "user-a"}, nil)
	provider.On("VerifyToken", mock.Anything, "token-b").
		Return(&Identity{ID: "user-b"}, nil)

	guard := NewAccessGuard(provider)

	type result struct {
		token   string
		session *SessionContext
		err     error
	}

	results := make(chan result, 20)
	for i := 0; i < 10; i++ {
		for _, token := range []string{"token-a", "token-b"} {
			go func(token string) {
				session, err := guard.Authenticate(context.Background(), "Bearer "+token, "")
				results <- result{token: token, session: session, err: err}
			}(token)
		}
	}

	for i := 0; i < 20; i++ {
		r := <-results
		require.NoError(t, r.err)
		switch r.token {
		case "token-a":
			assert.Equal(t, "user-a", r.session.Principal.ID)
		case "token-b":
			assert.Equal(t, "user-b", r.session.Principal.ID)
		}
		assert.Equal(t, r.token, r.session.AccessToken)
	}
}

func TestAccessGuardMiddleware(t *testing.T) {
	provider := new(MockProvider)
	provider.On("VerifyToken", mock.Anything, "good-token").
		Return(&Identity{ID: "id-1", Email: "alice@example.com"}, nil)

	guard := NewAccessGuard(provider)

	var handledErr error
	mw := guard.Middleware(func(ctx router.Context, err error) error {
		handledErr = err
		return nil
	})
	handler := mw(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("GetString", "Authorization", "").Return("Bearer good-token")
	ctx.On("GetString", HeaderRefreshToken, "").Return("")
	ctx.On("Locals", LocalsPrincipalKey, Principal{ID: "id-1", Email: "alice@example.com"}).Return(nil).Once()
	ctx.On("SetContext", mock.Anything).Return()

	require.NoError(t, handler(ctx))
	assert.NoError(t, handledErr)
	assert.True(t, ctx.NextCalled)
	ctx.AssertCalled(t, "SetContext", mock.MatchedBy(func(c context.Context) bool {
		session, ok := SessionFromContext(c)
		return ok && session.Principal.ID == "id-1" && session.AccessToken == "good-token"
	}))
}

func TestAccessGuardMiddlewareRejects(t *testing.T) {
	provider := new(MockProvider)
	guard := NewAccessGuard(provider)

	var handledErr error
	mw := guard.Middleware(func(ctx router.Context, err error) error {
		handledErr = err
		return nil
	})
	handler := mw(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("GetString", HeaderRefreshToken, "").Return("")

	require.NoError(t, handler(ctx))
	require.Error(t, handledErr)
	assert.True(t, HasTextCode(handledErr, TextCodeUnauthorized))
	assert.False(t, ctx.NextCalled)
	provider.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}
