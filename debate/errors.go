package debate

import (
	"errors"
	"fmt"
)

// Error taxonomy for the orchestration layer. VALIDATION errors are
// rejected before a job row exists; TERMINAL errors fail a job without
// further retries; everything else a handler returns is treated as
// TRANSIENT and routed through the retry/backoff path. A CAS that loses a
// race is not an error at all.
var (
	// ErrInvalidTransition is returned when a (status, event) pair is
	// outside the room lifecycle graph. The room status is left untouched.
	ErrInvalidTransition = errors.New("INVALID_TRANSITION")

	// ErrGuardNotSatisfied is returned when the event is on the graph but
	// its persisted-state guard does not hold yet.
	ErrGuardNotSatisfied = errors.New("transition guard not satisfied")

	// ErrValidation rejects a malformed enqueue payload before any job row
	// is created.
	ErrValidation = errors.New("invalid job payload")
)

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks an error as unrecoverable: the dispatcher fails the job
// immediately instead of spending retries on it.
func Terminal(format string, args ...interface{}) error {
	return &terminalError{err: fmt.Errorf(format, args...)}
}

// IsTerminal reports whether err (or anything it wraps) was marked
// unrecoverable via Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
