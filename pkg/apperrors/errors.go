// Package apperrors defines the error taxonomy shared by the consistency layer.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("optimistic concurrency conflict")
	ErrOffline  = errors.New("no connectivity")

	// ErrStoreUnresolved wraps ErrNotFound: an unresolvable regional store
	// handle surfaces to callers the same way a missing record does.
	ErrStoreUnresolved = fmt.Errorf("regional store handle could not be resolved: %w", ErrNotFound)
)

// ValidationError reports malformed input to the record service. It is
// surfaced synchronously and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// DuplicateError is raised by the dedup guard when byte-identical content is
// already on file for the tenant. ExistingID points at the prior document.
type DuplicateError struct {
	ExistingID string
	Hash       string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content (hash %s) already stored as document %s", e.Hash, e.ExistingID)
}

// TransientStoreError wraps a network or transaction failure that is safe to
// hand to the durable mutation queue for later replay.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable by wrapping it in a TransientStoreError.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientStoreError{Op: op, Err: err}
}

// IsTransient reports whether err may succeed on a later attempt. Validation,
// not-found, duplicate, and conflict errors are permanent; only explicitly
// wrapped store failures qualify.
func IsTransient(err error) bool {
	var tse *TransientStoreError
	return errors.As(err, &tse)
}

// IsDuplicate reports whether err is a dedup rejection and returns the
// existing document id when it is.
func IsDuplicate(err error) (string, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.ExistingID, true
	}
	return "", false
}
