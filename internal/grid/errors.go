package grid

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrRowNotFound          = errors.New("row not found")
	ErrColumnNotEditable    = errors.New("column not editable")
	ErrCommitInProgress     = errors.New("commit in progress")
	ErrInvalidPagination    = errors.New("invalid pagination")
	ErrUnknownGrid          = errors.New("unknown grid")
	ErrClosed               = errors.New("grid closed")
)

// UnsupportedError is returned when an optional data source capability is
// invoked on a source that does not implement it.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedOperation, e.Op)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// FetchError wraps a failed fetch with the state generation it was issued for.
type FetchError struct {
	Generation uint64
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch (generation %d): %v", e.Generation, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CommitError wraps a failed save of one row's pending edits.
type CommitError struct {
	RowID string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit row %s: %v", e.RowID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
