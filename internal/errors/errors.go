// Package errors defines the typed error taxonomy of the overdue engine.
// Every error is deterministic and local; the only retry the engine expects
// is a caller-driven retry after ErrConflict.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy
var (
	// ErrValidation indicates malformed input; surfaced directly, never retried
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing resource, or one outside the caller's
	// accessible set - the two are deliberately indistinguishable
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller's role lacks a required capability
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition indicates an operation attempted from a terminal
	// or otherwise ineligible workflow state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConflict indicates an optimistic version mismatch; the caller must
	// refresh and retry with the current version
	ErrConflict = errors.New("concurrency conflict")

	// ErrDuplicateRequest indicates an active request already exists for the
	// same requester and target
	ErrDuplicateRequest = errors.New("duplicate active request")
)

// Validationf wraps a formatted message as a validation error
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// NotFoundf wraps a formatted message as a not-found error
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Forbiddenf wraps a formatted message as an authorization error
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

// Transitionf wraps a formatted message as an invalid-transition error
func Transitionf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidTransition)...)
}

// Conflictf wraps a formatted message as a concurrency conflict
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Duplicatef wraps a formatted message as a duplicate-active-request error
func Duplicatef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrDuplicateRequest)...)
}

// IsValidation checks whether err is a validation error
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound checks whether err is a not-found error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden checks whether err is an authorization error
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsInvalidTransition checks whether err is an invalid-transition error
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsConflict checks whether err is a concurrency conflict
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsDuplicateRequest checks whether err is a duplicate-active-request error
func IsDuplicateRequest(err error) bool { return errors.Is(err, ErrDuplicateRequest) }
