package timer

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is wrapped by every rejected operation.
var ErrInvalidTransition = errors.New("invalid timer transition")

// TransitionError reports an operation called from a state that does not allow it.
type TransitionError struct {
	Op     string
	Status Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CommitError wraps a failed commit. The session stays running.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing time entry: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
