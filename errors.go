package accounts

import (
	"context"
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed      = "VALIDATION_FAILED"
	TextCodeInvalidInput          = "INVALID_INPUT"
	TextCodeUnauthorized          = "UNAUTHORIZED"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeSignupDisabled        = "SIGNUP_DISABLED"
	TextCodeIdentityNotFound      = "IDENTITY_NOT_FOUND"
	TextCodeProfileNotFound       = "PROFILE_NOT_FOUND"
	TextCodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	TextCodeDuplicateProfile      = "DUPLICATE_PROFILE"
	TextCodeInconsistentState     = "INCONSISTENT_STATE"
	TextCodeInternal              = "INTERNAL_ERROR"
	TextCodeProviderUnavailable   = "PROVIDER_UNAVAILABLE"
	TextCodeInvalidSagaTransition = "INVALID_REGISTRATION_TRANSITION"
)

// ErrValidation is returned when a request payload is rejected before reaching
// any external system.
var ErrValidation = errors.New("invalid request payload", errors.CategoryValidation).
	WithTextCode(TextCodeValidationFailed).
	WithCode(errors.CodeBadRequest)

// ErrInvalidInput is returned by providers that reject the submitted
// credentials shape, e.g. a password policy violation.
var ErrInvalidInput = errors.New("identity provider rejected the input", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(errors.CodeBadRequest)

// ErrUnauthorized is the single error the access guard exposes.
var ErrUnauthorized = errors.New("unauthorized", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

var ErrInvalidCredentials = errors.New("invalid login credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

var ErrTokenInvalid = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the authenticated principal targets a
// resource it does not own.
var ErrForbidden = errors.New("you can only modify your own account", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

var ErrSignupDisabled = errors.New("signup is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

var ErrProfileNotFound = errors.New("profile not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(errors.CodeNotFound)

var ErrDuplicateIdentity = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(errors.CodeConflict)

var ErrDuplicateProfile = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateProfile).
	WithCode(errors.CodeConflict)

// ErrInconsistentState is returned when an identity exists in the provider
// but its profile is missing from the store.
var ErrInconsistentState = errors.New("account is in an inconsistent state", errors.CategoryInternal).
	WithTextCode(TextCodeInconsistentState).
	WithCode(errors.CodeInternal)

var ErrInternal = errors.New("an unexpected error occurred", errors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(errors.CodeInternal)

// ErrProviderUnavailable wraps opaque transport failures from an identity
// provider. It is never surfaced as is, flows collapse it to ErrInternal.
var ErrProviderUnavailable = errors.New("identity provider unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(errors.CodeInternal)

var ErrInvalidSagaTransition = errors.New("invalid registration state transition", errors.CategoryInternal).
	WithTextCode(TextCodeInvalidSagaTransition).
	WithCode(errors.CodeInternal)

// ErrorKind is the caller facing classification of an error.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInconsistentState ErrorKind = "inconsistent_state"
	KindInternal          ErrorKind = "internal"
)

// NewError clones base and attaches cause and metadata. Use it instead of
// returning the shared sentinel so callers never mutate it.
func NewError(base *errors.Error, cause error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if cause != nil {
		clone.Source = cause
	}
	if len(metadata) > 0 {
		clone = clone.WithMetadata(metadata)
	}
	return clone
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// KindOf maps any error into the taxonomy. Errors that are not rich errors
// are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return KindInternal
	}

	if richErr.TextCode == TextCodeInconsistentState {
		return KindInconsistentState
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return KindValidation
	case errors.CategoryAuth:
		return KindUnauthorized
	case errors.CategoryAuthz:
		return KindForbidden
	case errors.CategoryNotFound:
		return KindNotFound
	case errors.CategoryConflict:
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// internalError collapses err into ErrInternal keeping the cause for logs.
func internalError(err error, operation string) *errors.Error {
	return NewError(ErrInternal, err, map[string]any{
		"operation": operation,
	})
}

// isTimeout reports whether a call failed because its deadline expired.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
