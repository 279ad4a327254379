// Package errs implements Switchyard's error taxonomy: transient,
// invariant-violation, resource-exhaustion, cancellation, and fatal errors.
// Components wrap failures in an *errs.Error so callers (principally the
// pipeline orchestrator and delivery service) can decide retry-vs-terminal
// without string-matching error messages.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for retry/propagation decisions.
type Kind int

const (
	// Transient errors are safe to retry: network blips, dependency
	// unavailability, lock-acquire timeouts, metrics-fetch failures.
	Transient Kind = iota
	// Invariant marks a violated invariant: duplicate id, illegal state
	// transition, validation failure. Never retried.
	Invariant
	// Exhaustion marks a resource-exhaustion condition: retries exhausted,
	// stabilization timed out, queue full.
	Exhaustion
	// Cancelled marks propagated context cancellation.
	Cancelled
	// Fatal marks an unrecoverable internal error; the process keeps
	// serving other work but this operation cannot be salvaged.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Invariant:
		return "invariant"
	case Exhaustion:
		return "exhaustion"
	case Cancelled:
		return "cancelled"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a structured, classified error. Details carries diagnostic
// information that should not be shown to external callers: user-visible
// failures get a short reason, internals go to Details.
type Error struct {
	Kind    Kind
	Stage   string // the failing component/stage, for user-visible messages
	Reason  string // short, user-visible reason
	Details string // internal diagnostic detail, not necessarily user-facing
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, stage, reason string) *Error {
	return &Error{Kind: kind, Stage: stage, Reason: reason}
}

// Wrap classifies an existing error, keeping it as the cause.
func Wrap(kind Kind, stage, reason string, cause error) *Error {
	e := &Error{Kind: kind, Stage: stage, Reason: reason, Err: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// FromContext classifies ctx.Err() as Cancelled, or returns nil if ctx has
// not been cancelled.
func FromContext(ctx context.Context, stage string) *Error {
	if err := ctx.Err(); err != nil {
		return Wrap(Cancelled, stage, "operation cancelled", err)
	}
	return nil
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, defaulting to Fatal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Fatal
}
