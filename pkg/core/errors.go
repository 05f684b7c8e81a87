package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrSchema is returned when the configured schema is malformed or an
	// existing table has an incompatible shape.
	ErrSchema = errors.New("incompatible or malformed schema")

	// ErrEmbedding is returned when the embedding collaborator fails or
	// returns vectors that do not match the configured dimensionality.
	ErrEmbedding = errors.New("embedding failed")

	// ErrFilter is returned when a metadata predicate uses an unsupported
	// value shape or an invalid key.
	ErrFilter = errors.New("invalid metadata filter")

	// ErrStorage is returned when the underlying engine fails during a
	// transaction. The transaction is rolled back; no partial state is
	// observable.
	ErrStorage = errors.New("storage engine error")

	// ErrStoreClosed is returned when using a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrUnsupportedMode is returned when an operation requires an index the
	// store's mode does not maintain, e.g. KeywordSearch on a vector-only
	// store.
	ErrUnsupportedMode = errors.New("operation not supported by store mode")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("lexivec: %v", e.Err)
	}
	return fmt.Sprintf("lexivec: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// storageError tags an engine failure with ErrStorage while keeping the
// driver error in the chain.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: fmt.Errorf("%w: %v", ErrStorage, err)}
}
