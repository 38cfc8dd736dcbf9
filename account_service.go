package accounts

import (
	"context"
	"strings"
)

// AccountService runs the login, update and delete flows.
type AccountService struct {
	*Registrar
	provider IdentityProvider
	profiles ProfileStore
	opts     options
}

// NewAccountService returns an AccountService. Registration is served by
// the embedded Registrar built from the same collaborators.
func NewAccountService(provider IdentityProvider, profiles ProfileStore, opts ...Option) *AccountService {
	return &AccountService{
		Registrar: NewRegistrar(provider, profiles, opts...),
		provider:  provider,
		profiles:  profiles,
		opts:      newOptions(opts...),
	}
}

// Login authenticates against the provider and merges the profile.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	callCtx, cancel := s.opts.withCallTimeout(ctx)
	identity, err := s.provider.Authenticate(callCtx, email, password)
	cancel()
	if err != nil {
		s.recordLoginFailure(ctx, email, err)
		switch KindOf(err) {
		case KindUnauthorized, KindForbidden:
			return nil, err
		default:
			s.opts.logger.Error("login authenticate failed", "email", email, "error", err)
			return nil, internalError(err, "login.authenticate")
		}
	}

	if identity == nil || identity.ID == "" {
		s.opts.logger.Error("identity provider returned no identity on login", "email", email)
		return nil, NewError(ErrInternal, nil, map[string]any{"operation": "login.authenticate"})
	}

	profile, err := s.findProfile(ctx, identity.ID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			s.opts.logger.Error("login found identity without profile",
				"identity_id", identity.ID,
				"text_code", TextCodeInconsistentState,
			)
			return nil, NewError(ErrInconsistentState, err, map[string]any{
				"identity_id": identity.ID,
				"operation":   "login.profile",
			})
		}
		s.opts.logger.Error("login profile fetch failed", "identity_id", identity.ID, "error", err)
		return nil, internalError(err, "login.profile")
	}

	recordActivity(ctx, s.opts.activitySink, s.opts.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		ActorID:   identity.ID,
		UserID:    identity.ID,
	})

	return newAuthResult(identity, profile), nil
}

// UpdateCredentials changes email and/or password of the session owner.
// A failed profile re-fetch is reported but the credential change stays.
func (s *AccountService) UpdateCredentials(ctx context.Context, session *SessionContext, targetID string, patch CredentialsPatch) (*AccountRecord, error) {
	if session == nil {
		return nil, ErrUnauthorized.Clone()
	}

	if err := ensureSameUser(session.Principal, targetID); err != nil {
		return nil, err
	}

	if patch.Empty() {
		return nil, NewError(ErrValidation, nil, map[string]any{
			"reason": "email or password is required",
		})
	}

	if patch.Email != nil {
		normalized := normalizeEmail(*patch.Email)
		patch.Email = &normalized
	}

	callCtx, cancel := s.opts.withCallTimeout(ctx)
	identity, err := s.provider.UpdateCredentials(callCtx, session, patch)
	cancel()
	if err != nil {
		switch KindOf(err) {
		case KindUnauthorized, KindForbidden, KindNotFound, KindConflict, KindValidation:
			return nil, err
		default:
			s.opts.logger.Error("update credentials failed", "identity_id", targetID, "error", err)
			return nil, internalError(err, "update_credentials.provider")
		}
	}

	email := ""
	if identity != nil {
		email = identity.Email
	}
	if email == "" && patch.Email != nil {
		email = *patch.Email
	}

	profile, err := s.findProfile(ctx, targetID)
	if err != nil {
		s.opts.logger.Error("credentials updated but profile fetch failed",
			"identity_id", targetID,
			"error", err,
		)
		if KindOf(err) == KindNotFound {
			return nil, NewError(ErrInconsistentState, err, map[string]any{
				"identity_id": targetID,
				"operation":   "update_credentials.profile",
			})
		}
		return nil, internalError(err, "update_credentials.profile")
	}

	recordActivity(ctx, s.opts.activitySink, s.opts.logger, ActivityEvent{
		EventType: ActivityEventCredentialsUpdated,
		ActorID:   session.Principal.ID,
		UserID:    targetID,
		Metadata: map[string]any{
			"email_changed":    patch.Email != nil,
			"password_changed": patch.Password != nil,
		},
	})

	return &AccountRecord{
		ID:       targetID,
		Username: profile.Username,
		Email:    email,
	}, nil
}

// UpdateProfile changes profile attributes of the principal.
func (s *AccountService) UpdateProfile(ctx context.Context, principal Principal, targetID string, patch ProfilePatch) (*UsernameRecord, error) {
	if err := ensureSameUser(principal, targetID); err != nil {
		return nil, err
	}

	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}

	callCtx, cancel := s.opts.withCallTimeout(ctx)
	profile, err := s.profiles.Update(callCtx, targetID, patch)
	cancel()
	if err != nil {
		switch KindOf(err) {
		case KindNotFound, KindConflict, KindValidation:
			return nil, err
		default:
			s.opts.logger.Error("update profile failed", "identity_id", targetID, "error", err)
			return nil, internalError(err, "update_profile")
		}
	}

	recordActivity(ctx, s.opts.activitySink, s.opts.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		ActorID:   principal.ID,
		UserID:    targetID,
	})

	return &UsernameRecord{Username: profile.Username}, nil
}

// DeleteAccount removes the profile and then the identity of the principal.
// Removing the profile first means a failure in between leaves an identity
// without profile, which login reports as inconsistent, and never a profile
// without identity.
func (s *AccountService) DeleteAccount(ctx context.Context, principal Principal, targetID string) (*DeleteResult, error) {
	if err := ensureSameUser(principal, targetID); err != nil {
		return nil, err
	}

	callCtx, cancel := s.opts.withCallTimeout(ctx)
	err := s.profiles.Delete(callCtx, targetID)
	cancel()
	if err != nil && KindOf(err) != KindNotFound {
		s.opts.logger.Error("delete account profile failed", "identity_id", targetID, "error", err)
		return nil, internalError(err, "delete_account.profile")
	}

	callCtx, cancel = s.opts.withCallTimeout(ctx)
	err = s.provider.DeleteIdentity(callCtx, targetID)
	cancel()
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, err
		}
		s.opts.logger.Error("delete account identity failed after profile removal",
			"identity_id", targetID,
			"text_code", TextCodeInconsistentState,
			"error", err,
		)
		return nil, internalError(err, "delete_account.identity")
	}

	recordActivity(ctx, s.opts.activitySink, s.opts.logger, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		ActorID:   principal.ID,
		UserID:    targetID,
	})

	return &DeleteResult{
		Success: true,
		Message: "User deleted successfully",
	}, nil
}

func (s *AccountService) findProfile(ctx context.Context, id string) (*Profile, error) {
	callCtx, cancel := s.opts.withCallTimeout(ctx)
	defer cancel()
	return s.profiles.FindByID(callCtx, id)
}

func (s *AccountService) recordLoginFailure(ctx context.Context, email string, err error) {
	recordActivity(ctx, s.opts.activitySink, s.opts.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Metadata: map[string]any{
			"email": email,
			"kind":  string(KindOf(err)),
		},
	})
}

// ensureSameUser runs before any external call.
func ensureSameUser(principal Principal, targetID string) error {
	if principal.ID == "" {
		return ErrUnauthorized.Clone()
	}
	if strings.TrimSpace(targetID) == "" || principal.ID != targetID {
		return NewError(ErrForbidden, nil, map[string]any{
			"principal_id": principal.ID,
			"target_id":    targetID,
		})
	}
	return nil
}
