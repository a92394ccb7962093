package intake

import (
	"errors"
	"fmt"
	"time"
)

// ErrFlowInProgress is returned by Start when the same author already has a
// flow running in the channel.
var ErrFlowInProgress = errors.New("meeting setup already in progress")

// ValidationError is a reply that does not satisfy the guard of its state.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// TimeoutError is returned when no reply arrives within the step timeout.
type TimeoutError struct {
	State State
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply within %s while waiting for the meeting %s", e.After, e.State.field())
}
