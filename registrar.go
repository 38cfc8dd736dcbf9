package accounts

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// Registrar creates an identity and its profile as one logical operation.
// The two systems share no transaction: when the profile cannot be created
// the identity is deleted again, once, with operator credentials.
type Registrar struct {
	provider IdentityProvider
	profiles ProfileStore
	opts     options
}

// NewRegistrar returns a Registrar using provider and profiles.
func NewRegistrar(provider IdentityProvider, profiles ProfileStore, opts ...Option) *Registrar {
	return &Registrar{
		provider: provider,
		profiles: profiles,
		opts:     newOptions(opts...),
	}
}

// Register creates the identity, then the profile, compensating on failure.
func (r *Registrar) Register(ctx context.Context, email, password, username string) (*AuthResult, error) {
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(
			ctx.Err(),
			errors.CategoryOperation,
			"context cancelled during registration",
		)
	default:
	}

	if err := requireSignupGate(ctx, r.opts.featureGate); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	saga := newRegistrationSaga(email, r.opts.observer, r.opts.now)

	identity, err := r.createIdentity(ctx, email, password)
	if err != nil {
		_ = saga.transition(ctx, RegistrationAborted)
		return nil, r.classifyIdentityError(err, email)
	}

	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		_ = saga.transition(ctx, RegistrationAborted)
		r.opts.logger.Error("identity provider returned no identity id", "email", email)
		return nil, NewError(ErrInternal, nil, map[string]any{
			"operation": "register.identity",
			"reason":    "missing identity id",
		})
	}

	saga.identityID = identity.ID
	if err := saga.transition(ctx, RegistrationIdentityCreated); err != nil {
		return nil, err
	}

	if err := saga.transition(ctx, RegistrationProfileAttempted); err != nil {
		return nil, err
	}

	profile, err := r.createProfile(ctx, identity.ID, username)
	if err == nil {
		if err := saga.transition(ctx, RegistrationCommitted); err != nil {
			return nil, err
		}

		recordActivity(ctx, r.opts.activitySink, r.opts.logger, ActivityEvent{
			EventType: ActivityEventAccountRegistered,
			ActorID:   identity.ID,
			UserID:    identity.ID,
			Metadata: map[string]any{
				"username": profile.Username,
			},
		})

		return newAuthResult(identity, profile), nil
	}

	r.opts.logger.Error("registration profile create failed",
		"identity_id", identity.ID,
		"timeout", isTimeout(err),
		"error", err,
	)

	r.compensate(ctx, saga, identity.ID)

	return nil, r.classifyProfileError(err, identity.ID)
}

func (r *Registrar) createIdentity(ctx context.Context, email, password string) (*Identity, error) {
	callCtx, cancel := r.opts.withCallTimeout(ctx)
	defer cancel()
	return r.provider.Register(callCtx, email, password)
}

func (r *Registrar) createProfile(ctx context.Context, id, username string) (*Profile, error) {
	callCtx, cancel := r.opts.withCallTimeout(ctx)
	defer cancel()

	profile, err := r.profiles.Create(callCtx, id, username)
	if err == nil && profile == nil {
		return nil, NewError(ErrInternal, nil, map[string]any{"reason": "store returned no profile"})
	}
	return profile, err
}

// compensate deletes the identity created by this saga. It runs detached
// from the request cancellation, its outcome is logged and recorded but
// never returned.
func (r *Registrar) compensate(ctx context.Context, saga *registrationSaga, identityID string) {
	if err := saga.transition(ctx, RegistrationCompensating); err != nil {
		r.opts.logger.Error("registration compensation skipped", "identity_id", identityID, "error", err)
		return
	}

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.compensationTimeout)
	defer cancel()

	if err := r.provider.DeleteIdentity(compCtx, identityID); err != nil {
		_ = saga.transition(ctx, RegistrationCompensationFailed)
		r.opts.logger.Error("registration compensation failed, identity left without profile",
			"identity_id", identityID,
			"error", err,
		)
		recordActivity(ctx, r.opts.activitySink, r.opts.logger, ActivityEvent{
			EventType: ActivityEventRegistrationCompensationFailed,
			UserID:    identityID,
			Metadata: map[string]any{
				"error": err.Error(),
			},
		})
		return
	}

	_ = saga.transition(ctx, RegistrationCompensated)
	r.opts.logger.Info("registration compensated", "identity_id", identityID)
	recordActivity(ctx, r.opts.activitySink, r.opts.logger, ActivityEvent{
		EventType: ActivityEventRegistrationCompensated,
		UserID:    identityID,
	})
}

func (r *Registrar) classifyIdentityError(err error, email string) error {
	switch KindOf(err) {
	case KindConflict, KindValidation, KindForbidden:
		return err
	default:
		r.opts.logger.Error("registration identity create failed", "email", email, "error", err)
		return internalError(err, "register.identity")
	}
}

func (r *Registrar) classifyProfileError(err error, identityID string) error {
	if KindOf(err) == KindConflict || IsUniqueViolation(err) {
		return NewError(ErrDuplicateProfile, err, map[string]any{"identity_id": identityID})
	}
	return internalError(err, "register.profile")
}
