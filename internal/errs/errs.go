// Package errs defines the error taxonomy shared across the engine.
// Retry, circuit-breaker, and fallback logic branch on the error kind,
// never on message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind int

const (
	// KindBadInput marks caller-supplied values that violate a precondition.
	// Never retried, surfaced to the caller.
	KindBadInput Kind = iota + 1
	// KindTransient marks network errors, timeouts, HTTP 429/5xx and
	// rate-limit refusals. Eligible for retry with backoff.
	KindTransient
	// KindUnavailable marks an open circuit breaker or an exhausted
	// provider chain with no usable cache.
	KindUnavailable
	// KindDegraded marks a request that succeeded with partial data.
	KindDegraded
	// KindInvalidState marks state-machine violations such as an illegal
	// signal status transition.
	KindInvalidState
	// KindFatal marks programmer errors and data-store corruption.
	KindFatal
)

// String returns the kind label used in logs.
func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "bad_input"
	case KindTransient:
		return "transient"
	case KindUnavailable:
		return "unavailable"
	case KindDegraded:
		return "degraded"
	case KindInvalidState:
		return "invalid_state"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the carrier every component returns across package boundaries.
type Error struct {
	Kind     Kind
	Op       string // operation, e.g. "market.quote"
	Provider string // optional upstream provider name
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Provider != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s [%s]: %v", e.Op, e.Kind, e.Provider, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromProvider wraps a provider call failure.
func FromProvider(kind Kind, op, provider string, err error) *Error {
	return &Error{Kind: kind, Op: op, Provider: provider, Err: err}
}

// BadInputf builds a BadInput error from a format string.
func BadInputf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidStatef builds an InvalidState error from a format string.
func InvalidStatef(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// treated as fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool { return err != nil && KindOf(err) == KindTransient }

// IsUnavailable reports whether err came from an open breaker or an
// exhausted chain.
func IsUnavailable(err error) bool { return err != nil && KindOf(err) == KindUnavailable }

// IsBadInput reports whether err is a caller error.
func IsBadInput(err error) bool { return err != nil && KindOf(err) == KindBadInput }

// IsInvalidState reports whether err is a state-machine violation.
func IsInvalidState(err error) bool { return err != nil && KindOf(err) == KindInvalidState }
