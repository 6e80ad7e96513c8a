package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every feature package. Handlers translate them
// into HTTP statuses with StatusForError; services and repositories wrap
// them with fmt.Errorf("...: %w", err) so the category survives the stack.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("requested item not found")
	// ErrConflict means a uniqueness constraint was violated (email, phone).
	ErrConflict = errors.New("item already exists or conflict")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrAccountLocked means the lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountNotActive means a non-active status blocks login.
	ErrAccountNotActive = errors.New("account not active")
	// ErrInvalidToken covers bad signature, malformed structure, wrong type
	// and expiry on any token purpose.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrSamePassword rejects a change-password no-op.
	ErrSamePassword = errors.New("new password must be different from current password")
	// ErrUnauthenticated means a required bearer token is missing or bad.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the principal lacks a required role.
	ErrForbidden = errors.New("action forbidden")
	// ErrValidation means the input shape is malformed.
	ErrValidation = errors.New("validation failed")
)

// StatusForError maps a wrapped sentinel to an HTTP status. Unknown errors
// are treated as internal.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSamePassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrAccountNotActive), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError builds an ErrValidation with a field-level detail message.
func ValidationError(field, detail string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, detail)
}
