package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies orchestrator failures. All kinds except KindMaxTurns
// are recovered at the turn level: they are recorded on the turn and the run
// loop continues.
type ErrorKind string

const (
	KindTransport         ErrorKind = "transport"          // model client failure
	KindMalformedResponse ErrorKind = "malformed_response" // parser could not repair the text
	KindToolNotFound      ErrorKind = "tool_not_found"
	KindToolValidation    ErrorKind = "tool_validation"
	KindDeadlineExceeded  ErrorKind = "deadline_exceeded" // distinct from caller cancellation
	KindCancelled         ErrorKind = "cancelled"
	KindMaxTurns          ErrorKind = "max_turns" // the only fatal kind
)

// StepError tags an underlying failure with its kind.
type StepError struct {
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// WrapError tags err with a kind.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Kind: kind, Err: err}
}

// KindOf extracts the kind from an error, defaulting to transport.
func KindOf(err error) ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}

// MaxTurnsError terminates a run that exhausted its turn ceiling.
type MaxTurnsError struct {
	AgentID      string
	Turns        int
	LoopDetected bool
}

func (e *MaxTurnsError) Error() string {
	if e.LoopDetected {
		return fmt.Sprintf("agent %s reached max turns (%d) while repeating the same tool call", e.AgentID, e.Turns)
	}
	return fmt.Sprintf("agent %s reached max turns (%d) without finishing", e.AgentID, e.Turns)
}

// classifyCallError distinguishes deadline expiry of a per-call timer from
// cancellation issued by the caller. The two must never be conflated: a
// deadline is recoverable at the turn level, a cancellation aborts the step.
func classifyCallError(parent context.Context, err error) ErrorKind {
	if err == nil {
		return ""
	}
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		// The per-call context was torn down but the parent is still live:
		// treat as transport noise rather than a caller cancel.
		return KindTransport
	}
	return KindTransport
}
