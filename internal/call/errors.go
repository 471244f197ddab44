package call

import (
	"errors"
	"fmt"
)

// Session state machine sentinels. Transitions out of a terminal state are
// rejected, never retried.
var (
	ErrTerminalState     = errors.New("call: session already in a terminal state")
	ErrInvalidTransition = errors.New("call: invalid state transition")
	ErrSessionNotFound   = errors.New("call: session not found")
)

// ValidationError rejects a request before any side effect.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("call: %s is required", e.Field)
}

// StorageError wraps a failed record store write. Fatal on the initiate
// path, swallowed-and-logged on the reconciliation update path.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("call: appointment store %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UpstreamServiceError wraps a failed call to the speech service or the
// extraction model.
type UpstreamServiceError struct {
	Service string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("call: %s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }
