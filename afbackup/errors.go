package afbackup

import (
	"fmt"
	"slices"
)

// IncompleteError is returned when the stored segment indices
// are not exactly 0 through n-1.
// Replaying such a backup would hand the session an inconsistent history.
type IncompleteError struct {
	// The indices that were found, in ascending order.
	Indices []int
}

func (e IncompleteError) Error() string {
	return fmt.Sprintf("backup is not complete: got segments %v", e.Indices)
}

func (e IncompleteError) Is(target error) bool {
	t, ok := target.(IncompleteError)
	return ok && slices.Equal(e.Indices, t.Indices)
}

// IOError wraps a filesystem failure while listing, reading, or creating segments.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e IOError) Error() string {
	return fmt.Sprintf("backup could not be loaded because of IO error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e IOError) Unwrap() error {
	return e.Err
}
