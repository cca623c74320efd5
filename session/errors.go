package session

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is matched by every ClosedError.
var ErrSessionClosed = errors.New("session is closed")

// ClosedError reports a directive issued after the session terminated.
type ClosedError struct {
	SessionID  string
	LastStepID int
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("session %s: closed after step %d", e.SessionID, e.LastStepID)
}

// Is lets errors.Is(err, ErrSessionClosed) match.
func (e *ClosedError) Is(target error) bool {
	return target == ErrSessionClosed
}

// ValidationError reports a step envelope that broke the contract.
type ValidationError struct {
	StepID int // expected step id
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("step %d: invalid envelope: %s", e.StepID, e.Reason)
	}
	return fmt.Sprintf("step %d: invalid %s: %s", e.StepID, e.Field, e.Reason)
}

// ProviderError wraps a failed or timed out provider call.
type ProviderError struct {
	StepID int
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("step %d: provider call failed: %v", e.StepID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TurnError is returned when a turn failed on every attempt. The session is
// still running and its history is unchanged; the caller may retry the turn
// or abort.
type TurnError struct {
	ExpectedStepID int
	LastGoodStepID int // 0 when no step has been accepted
	Attempts       int
	Err            error // last attempt's error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("step %d failed after %d attempts (last good step %d): %v",
		e.ExpectedStepID, e.Attempts, e.LastGoodStepID, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
