package accounts

import (
	"context"
	"time"
)

// RegistrationState is a step of the registration saga.
type RegistrationState string

const (
	RegistrationPending            RegistrationState = "pending"
	RegistrationIdentityCreated    RegistrationState = "identity_created"
	RegistrationProfileAttempted   RegistrationState = "profile_attempted"
	RegistrationCommitted          RegistrationState = "committed"
	RegistrationCompensating       RegistrationState = "compensating"
	RegistrationCompensated        RegistrationState = "compensated"
	RegistrationCompensationFailed RegistrationState = "compensation_failed"
	RegistrationAborted            RegistrationState = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s RegistrationState) Terminal() bool {
	_, ok := registrationTransitions[s]
	return !ok
}

// RegistrationTransition describes a single saga step.
type RegistrationTransition struct {
	From       RegistrationState
	To         RegistrationState
	Email      string
	IdentityID string
	At         time.Time
}

// RegistrationObserver is notified after each saga transition.
type RegistrationObserver func(ctx context.Context, transition RegistrationTransition)

// Compensating is only reachable from profile_attempted, which is left for
// good once taken. That keeps compensation to a single attempt per saga.
var registrationTransitions = map[RegistrationState]map[RegistrationState]struct{}{
	RegistrationPending: {
		RegistrationIdentityCreated: {},
		RegistrationAborted:         {},
	},
	RegistrationIdentityCreated: {
		RegistrationProfileAttempted: {},
	},
	RegistrationProfileAttempted: {
		RegistrationCommitted:    {},
		RegistrationCompensating: {},
	},
	RegistrationCompensating: {
		RegistrationCompensated:        {},
		RegistrationCompensationFailed: {},
	},
}

type registrationSaga struct {
	state      RegistrationState
	email      string
	identityID string
	history    []RegistrationState
	observer   RegistrationObserver
	now        func() time.Time
}

func newRegistrationSaga(email string, observer RegistrationObserver, now func() time.Time) *registrationSaga {
	if now == nil {
		now = time.Now
	}
	return &registrationSaga{
		state:    RegistrationPending,
		email:    email,
		history:  []RegistrationState{RegistrationPending},
		observer: observer,
		now:      now,
	}
}

func (s *registrationSaga) State() RegistrationState {
	return s.state
}

func (s *registrationSaga) History() []RegistrationState {
	out := make([]RegistrationState, len(s.history))
	copy(out, s.history)
	return out
}

func (s *registrationSaga) canTransition(to RegistrationState) bool {
	targets, ok := registrationTransitions[s.state]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

func (s *registrationSaga) transition(ctx context.Context, to RegistrationState) error {
	if !s.canTransition(to) {
		return NewError(ErrInvalidSagaTransition, nil, map[string]any{
			"from":        s.state,
			"to":          to,
			"identity_id": s.identityID,
		})
	}

	from := s.state
	s.state = to
	s.history = append(s.history, to)

	if s.observer != nil {
		s.observer(ctx, RegistrationTransition{
			From:       from,
			To:         to,
			Email:      s.email,
			IdentityID: s.identityID,
			At:         s.now(),
		})
	}

	return nil
}
