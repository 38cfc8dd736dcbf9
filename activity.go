package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountRegistered              ActivityEventType = "account.registered"
	ActivityEventRegistrationCompensated        ActivityEventType = "account.registration.compensated"
	ActivityEventRegistrationCompensationFailed ActivityEventType = "account.registration.compensation_failed"
	ActivityEventLoginSuccess                   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure                   ActivityEventType = "auth.login.failure"
	ActivityEventCredentialsUpdated             ActivityEventType = "account.credentials.updated"
	ActivityEventProfileUpdated                 ActivityEventType = "account.profile.updated"
	ActivityEventAccountDeleted                 ActivityEventType = "account.deleted"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity is best effort, sink failures are only logged.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("activity sink record failed", "event", event.EventType, "error", err)
	}
}
