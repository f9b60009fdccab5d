package signup

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks malformed, missing or policy-violating input.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited marks a source that exhausted its intake quota.
	ErrRateLimited = errors.New("rate limited")

	// ErrState marks an unknown token or a record in the wrong prior state.
	ErrState = errors.New("invalid signup state")

	// ErrDependency marks a failing record store, bot gate or mail provider.
	ErrDependency = errors.New("dependency failure")

	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("signup not found")

	// ErrInvalidInput is returned for programmer errors (nil deps, empty ids).
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a rejected input field. Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, code, msg string) error {
	return &ValidationError{Field: field, Code: code, Message: msg}
}

// RateLimitError carries retry metadata for throttled intake.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StateReason is a stable, machine-readable state rejection cause.
type StateReason string

const (
	ReasonMissingToken     StateReason = "missing_token"
	ReasonInvalidToken     StateReason = "invalid_token"
	ReasonNotVerified      StateReason = "not_verified"
	ReasonAlreadyCompleted StateReason = "already_completed"
)

// StateError reports a token/state precondition failure.
type StateError struct {
	Op     string
	Reason StateReason
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrState, e.Reason)
}

func (e *StateError) Unwrap() error { return ErrState }

// Message is the user-facing text for the reason.
// Already-completed and not-yet-verified share a message; only Reason tells them apart.
func (e *StateError) Message() string {
	switch e.Reason {
	case ReasonMissingToken:
		return "Token is required"
	case ReasonNotVerified, ReasonAlreadyCompleted:
		return "Please verify your email first"
	default:
		return "Invalid token"
	}
}

// DependencyError wraps a failing external call.
type DependencyError struct {
	Op         string
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Dependency, e.Err)
}

// Unwrap exposes both ErrDependency and the cause.
func (e *DependencyError) Unwrap() []error { return []error{ErrDependency, e.Err} }

func dependency(op, dep string, err error) error {
	return &DependencyError{Op: op, Dependency: dep, Err: err}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsState reports whether err is a token/state rejection.
func IsState(err error) bool { return errors.Is(err, ErrState) }

// IsDependency reports whether err is an external failure.
func IsDependency(err error) bool { return errors.Is(err, ErrDependency) }
