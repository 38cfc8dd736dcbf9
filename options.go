package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

const (
	// DefaultCallTimeout bounds every provider and store call.
	DefaultCallTimeout = 10 * time.Second
	// DefaultCompensationTimeout bounds the compensating identity delete.
	DefaultCompensationTimeout = 10 * time.Second
)

type options struct {
	logger              Logger
	activitySink        ActivitySink
	featureGate         gate.FeatureGate
	callTimeout         time.Duration
	compensationTimeout time.Duration
	observer            RegistrationObserver
	requireRefreshToken bool
	now                 func() time.Time
}

// Option configures Registrar, AccountService and AccessGuard.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{
		logger:              defLogger{},
		activitySink:        noopActivitySink{},
		callTimeout:         DefaultCallTimeout,
		compensationTimeout: DefaultCompensationTimeout,
		now:                 time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = normalizeLogger(logger)
	}
}

// WithActivitySink sets the ActivitySink used to publish account events.
func WithActivitySink(sink ActivitySink) Option {
	return func(o *options) {
		o.activitySink = normalizeActivitySink(sink)
	}
}

// WithFeatureGate enables feature gate checks, signup is gated by
// gate.FeatureUsersSignup.
func WithFeatureGate(featureGate gate.FeatureGate) Option {
	return func(o *options) {
		o.featureGate = featureGate
	}
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithCompensationTimeout overrides DefaultCompensationTimeout.
func WithCompensationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.compensationTimeout = d
		}
	}
}

// WithRegistrationObserver receives every registration state transition.
func WithRegistrationObserver(observer RegistrationObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithRefreshTokenRequired makes the guard reject requests without the
// refresh token header.
func WithRefreshTokenRequired(required bool) Option {
	return func(o *options) {
		o.requireRefreshToken = required
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

func (o options) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.callTimeout)
}
