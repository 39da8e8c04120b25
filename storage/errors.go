package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDriver indicates a database/sql driver name with no dialect.
	ErrUnknownDriver = errors.New("unknown database driver")
)

// StoreError provides structured error context for store operations.
type StoreError struct {
	// Op is the operation that failed (e.g., "Insert", "ReplaceGeneration")
	Op string

	// SessionKey is the session key if applicable
	SessionKey string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store %s failed", e.Op)
	if e.SessionKey != "" {
		msg += fmt.Sprintf(" for session %s", e.SessionKey)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op, sessionKey string, err error) *StoreError {
	return &StoreError{Op: op, SessionKey: sessionKey, Err: err}
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *StoreError) WithContext(key string, value any) *StoreError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
