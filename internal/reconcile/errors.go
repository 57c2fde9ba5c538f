package reconcile

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when another reconciliation of the same bookmark
// holds its lock. Callers retry later or skip the cycle.
var ErrConflict = errors.New("reconciliation already in progress")

// InputError reports a malformed snapshot. Nothing is written when it occurs.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid snapshot: %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a failed load or commit. The transaction has been
// rolled back and the bookmark is unchanged.
type PersistenceError struct {
	BookmarkID int64
	Cause      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist reconciliation of bookmark %d: %v", e.BookmarkID, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
