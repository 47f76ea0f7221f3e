package resilience

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and circuit-breaker handling.
// Adapters assign kinds at the boundary; the core never inspects
// platform error types.
type Kind int

const (
	KindTransient   Kind = iota // Retryable, counts toward the breaker
	KindTimeout                 // Deadline exceeded; breaker counting is per-adapter policy
	KindPermanent               // Not retryable, never counts toward the breaker
	KindCircuitOpen             // Rejected by an open breaker
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindPermanent:
		return "permanent"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a breaker rejects a call without
// invoking the wrapped operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Error tags an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) error {
	return &Error{Kind: KindPermanent, Err: err}
}

// Timeout wraps err as a deadline failure.
func Timeout(err error) error {
	return &Error{Kind: KindTimeout, Err: err}
}

// Classify returns the Kind of err. Untagged errors default to
// transient, matching the original call sites that retried anything
// not explicitly excluded.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindTransient
}
