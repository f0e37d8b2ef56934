package sync

import (
	"errors"
	"fmt"
	"time"
)

// ErrKindMismatch reports a relative position that holds a file in one tree
// and a directory in the other
var ErrKindMismatch = errors.New("entry kind mismatch")

// EntryError records a failed operation on one entry of the tree
type EntryError struct {
	Op   string // copy, update, delete, compare or read
	Path string // relative position
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Report summarizes one cycle
type Report struct {
	ID          string
	Copied      int
	Updated     int
	Deleted     int
	Failed      int
	BytesCopied int64
	Duration    time.Duration
	Errors      []error // *EntryError values, in the order they happened
}

// Changes returns the number of mutations applied to the replica
func (r *Report) Changes() int {
	return r.Copied + r.Updated + r.Deleted
}

// Err joins every entry failure of the cycle, or returns nil
func (r *Report) Err() error {
	return errors.Join(r.Errors...)
}
