package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common error types for the session layer
var (
	// Authentication errors - these clear session state when they surface
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserBlocked        = errors.New("user is blocked")

	// Transient errors - retried, never clear session state
	ErrTimeout            = errors.New("request timed out")
	ErrBackendUnavailable = errors.New("backend unavailable")

	// Data errors - surfaced at the call site, session untouched
	ErrProfileNotFound = errors.New("profile not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrNotFound        = errors.New("not found")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Kind classifies an error for the session layer's propagation policy:
// authentication errors force a session clear, transient errors are retried,
// data errors are absorbed with a fallback value.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindTransient
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindData:
		return "data"
	}
	return "unknown"
}

// Classify maps an error onto the session layer's taxonomy. Context
// cancellation and network failures count as transient so that flaky
// connectivity never logs a user out.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUserBlocked):
		return KindAuth
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	case errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrNotFound):
		return KindData
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

// IsAuth reports whether err is an authentication-class error.
func IsAuth(err error) bool {
	return Classify(err) == KindAuth
}

// IsTransient reports whether err should be retried rather than surfaced.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
