package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password too weak")
	// ErrAuthenticationFailed covers unknown email, wrong password and
	// inactive accounts alike; callers must not be able to tell them apart.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrTokenInvalid covers malformed, expired and already-revoked tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrNotFound is returned when a referenced user or post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when a non-owner attempts mutation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDuplicateSlug surfaces a store-level slug uniqueness violation.
	ErrDuplicateSlug = errors.New("slug already exists")
)

// ValidationError reports a post field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// WeakPasswordError attaches the policy violation to ErrWeakPassword so it
// still matches with errors.Is.
func WeakPasswordError(reason string) error {
	return fmt.Errorf("%w: %s", ErrWeakPassword, reason)
}
