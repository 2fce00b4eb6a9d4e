package session

import (
	"errors"
	"fmt"
)

// RejectedActionError reports an action that would violate a data-model
// invariant. The reducer returns the input session unchanged alongside
// it; callers show targeted feedback and never retry.
type RejectedActionError struct {
	Action string
	Reason string
}

func (e *RejectedActionError) Error() string {
	return fmt.Sprintf("action %s rejected: %s", e.Action, e.Reason)
}

// IsRejected reports whether err is a reducer rejection.
func IsRejected(err error) bool {
	var rej *RejectedActionError
	return errors.As(err, &rej)
}

func reject(action, format string, args ...any) *RejectedActionError {
	return &RejectedActionError{Action: action, Reason: fmt.Sprintf(format, args...)}
}
