package store

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for any operation submitted after Close.
var ErrClosed = errors.New("store: closed")

// InitError reports that the store could not be opened or created. No store
// is returned alongside it.
type InitError struct {
	Path  string // database file path
	Op    string // step that failed ("mkdir", "open", "pragma", "schema", ...)
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("store: init %s [path=%s]: %v", e.Op, e.Path, e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// ConstraintError reports that an insert would duplicate a stored identifier.
// The store is left unchanged, including the rest of a failed batch.
type ConstraintError struct {
	ID    string
	Cause error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("store: duplicate identifier %q", e.ID)
}

func (e *ConstraintError) Unwrap() error { return e.Cause }

// StorageError wraps an I/O or transaction failure. State afterwards is
// whatever the last committed transaction left.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func storageErr(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var se *StorageError
	var ce *ConstraintError
	if errors.As(cause, &se) || errors.As(cause, &ce) {
		return cause
	}
	return &StorageError{Op: op, Cause: cause}
}
