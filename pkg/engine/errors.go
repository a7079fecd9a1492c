package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind string

const (
	// KindInvalidArgument indicates malformed call parameters.
	KindInvalidArgument Kind = "invalid_argument"

	// KindUnavailable indicates the engine is not loaded.
	KindUnavailable Kind = "unavailable"

	// KindTimeout indicates a bounded wait expired.
	KindTimeout Kind = "timeout"

	// KindUnhealthy indicates an internal invariant check failed.
	KindUnhealthy Kind = "unhealthy"
)

var (
	// ErrInvalidArgument matches any error of KindInvalidArgument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable matches any error of KindUnavailable.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrTimeout matches any error of KindTimeout.
	ErrTimeout = errors.New("timeout")

	// ErrUnhealthy matches any error of KindUnhealthy.
	ErrUnhealthy = errors.New("engine unhealthy")
)

// Error is the error type returned by engines.
// It records which component and operation failed and why.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Component is the engine name (e.g., "rate_limiter").
	Component string

	// Op is the operation that failed (e.g., "check_rate_limit").
	Op string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s: %s", e.Component, e.Op, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUnhealthy:
		return e.Kind == KindUnhealthy
	}
	return false
}

// InvalidArgument creates a KindInvalidArgument error.
func InvalidArgument(component, op, message string) *Error {
	return &Error{Kind: KindInvalidArgument, Component: component, Op: op, Message: message}
}

// Unavailable creates a KindUnavailable error.
func Unavailable(component, op, message string) *Error {
	return &Error{Kind: KindUnavailable, Component: component, Op: op, Message: message}
}

// Timeout creates a KindTimeout error wrapping cause.
func Timeout(component, op, message string, cause error) *Error {
	return &Error{Kind: KindTimeout, Component: component, Op: op, Message: message, Cause: cause}
}

// Unhealthy creates a KindUnhealthy error.
func Unhealthy(component, op, message string) *Error {
	return &Error{Kind: KindUnhealthy, Component: component, Op: op, Message: message}
}

// KindOf returns the Kind of err, or "" if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
