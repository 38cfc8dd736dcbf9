package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationSagaHappyPath(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var transitions []RegistrationTransition
	saga := newRegistrationSaga("alice@example.com", func(ctx context.Context, tr RegistrationTransition) {
		transitions = append(transitions, tr)
	}, func() time.Time { return fixed })

	require.NoError(t, saga.transition(context.Background(), RegistrationIdentityCreated))
	saga.identityID = "id-1"
	require.NoError(t, saga.transition(context.Background(), RegistrationProfileAttempted))
	require.NoError(t, saga.transition(context.Background(), RegistrationCommitted))

	assert.Equal(t, RegistrationCommitted, saga.State())
	assert.True(t, saga.State().Terminal())
	assert.Equal(t, []RegistrationState{
		RegistrationPending,
		RegistrationIdentityCreated,
		RegistrationProfileAttempted,
		RegistrationCommitted,
	}, saga.History())

	require.Len(t, transitions, 3)
	assert.Equal(t, RegistrationPending, transitions[0].From)
	assert.Equal(t, "alice@example.com", transitions[0].Email)
	assert.Equal(t, "id-1", transitions[2].IdentityID)
	assert.Equal(t, fixed, transitions[2].At)
}

func TestRegistrationSagaCompensatesOnlyOnce(t *testing.T) {
	saga := newRegistrationSaga("bob@example.com", nil, nil)
	ctx := context.Background()

	require.NoError(t, saga.transition(ctx, RegistrationIdentityCreated))
	require.NoError(t, saga.transition(ctx, RegistrationProfileAttempted))
	require.NoError(t, saga.transition(ctx, RegistrationCompensating))

	err := saga.transition(ctx, RegistrationCompensating)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeInvalidSagaTransition))

	require.NoError(t, saga.transition(ctx, RegistrationCompensationFailed))
	assert.True(t, saga.State().Terminal())

	err = saga.transition(ctx, RegistrationCompensating)
	require.Error(t, err)
	assert.Equal(t, RegistrationCompensationFailed, saga.State())
}

func TestRegistrationSagaRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		path []RegistrationState
		next RegistrationState
	}{
		{name: "commit before identity", next: RegistrationCommitted},
		{name: "compensate before profile attempt", path: []RegistrationState{RegistrationIdentityCreated}, next: RegistrationCompensating},
		{name: "abort after identity", path: []RegistrationState{RegistrationIdentityCreated}, next: RegistrationAborted},
		{
			name: "compensate after commit",
			path: []RegistrationState{RegistrationIdentityCreated, RegistrationProfileAttempted, RegistrationCommitted},
			next: RegistrationCompensating,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saga := newRegistrationSaga("carol@example.com", nil, nil)
			for _, state := range tc.path {
				require.NoError(t, saga.transition(context.Background(), state))
			}

			before := saga.State()
			err := saga.transition(context.Background(), tc.next)
			require.Error(t, err)
			assert.Equal(t, KindInternal, KindOf(err))
			assert.Equal(t, before, saga.State())
		})
	}
}

func TestRegistrationStateTerminal(t *testing.T) {
	assert.False(t, RegistrationPending.Terminal())
	assert.False(t, RegistrationProfileAttempted.Terminal())
	assert.False(t, RegistrationCompensating.Terminal())
	assert.True(t, RegistrationAborted.Terminal())
	assert.True(t, RegistrationCompensated.Terminal())
}
