package accounts

import (
	"context"
	"sync"

	"github.com/goliatone/go-featuregate/gate"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements IdentityProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Register(ctx context.Context, email, password string) (*Identity, error) {
	args := m.Called(ctx, email, password)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

func (m *MockProvider) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	args := m.Called(ctx, email, password)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

func (m *MockProvider) UpdateCredentials(ctx context.Context, session *SessionContext, patch CredentialsPatch) (*Identity, error) {
	args := m.Called(ctx, session, patch)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

func (m *MockProvider) DeleteIdentity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	args := m.Called(ctx, token)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

// MockBindingProvider implements IdentityProvider and SessionBinder
type MockBindingProvider struct {
	MockProvider
}

func (m *MockBindingProvider) BindSession(ctx context.Context, session Session, identity *Identity) (*SessionContext, error) {
	args := m.Called(ctx, session, identity)
	sc, _ := args.Get(0).(*SessionContext)
	return sc, args.Error(1)
}

// MockProfileStore implements ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) FindByID(ctx context.Context, id string) (*Profile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*Profile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) Create(ctx context.Context, id, username string) (*Profile, error) {
	args := m.Called(ctx, id, username)
	profile, _ := args.Get(0).(*Profile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) Update(ctx context.Context, id string, patch ProfilePatch) (*Profile, error) {
	args := m.Called(ctx, id, patch)
	profile, _ := args.Get(0).(*Profile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *recordingSink) Record(ctx context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type transitionRecorder struct {
	mu     sync.Mutex
	states []RegistrationState
}

func (t *transitionRecorder) observe(ctx context.Context, tr RegistrationTransition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = append(t.states, tr.To)
}

func (t *transitionRecorder) list() []RegistrationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RegistrationState(nil), t.states...)
}
