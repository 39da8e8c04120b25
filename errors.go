package agentctx

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the engine configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMemoryDisabled is returned by memory operations when no store is
	// configured
	ErrMemoryDisabled = errors.New("observational memory is disabled")

	// ErrNoGenerator is returned when memory is enabled without a generator
	ErrNoGenerator = errors.New("no generator configured")
)

// EngineError represents an error with additional context
type EngineError struct {
	Op         string         // Operation that failed
	Err        error          // Underlying error
	SessionKey string         // Session key if applicable
	Context    map[string]any // Additional context
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.SessionKey != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionKey, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *EngineError) WithContext(key string, value any) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewEngineError creates a new EngineError
func NewEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Err: err}
}

// NewEngineErrorWithSession creates a new EngineError with a session key
func NewEngineErrorWithSession(op string, sessionKey string, err error) *EngineError {
	return &EngineError{Op: op, Err: err, SessionKey: sessionKey}
}
