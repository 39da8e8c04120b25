package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates invalid memory configuration.
	ErrInvalidConfig = errors.New("invalid memory configuration")

	// ErrInvalidObservation indicates an observation that violates a stored invariant.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrRangeOverlap indicates a raw observation batch that starts before
	// the session's high-water mark.
	ErrRangeOverlap = errors.New("observation range overlaps observed history")

	// ErrGenerationFailed indicates the generator call failed.
	ErrGenerationFailed = errors.New("generation failed")
)

// PassError describes a failed Observer or Reflector pass.
type PassError struct {
	// Op is "Observe" or "Reflect".
	Op string

	SessionKey string

	// Generation is the generation being reflected, -1 for Observe.
	Generation int

	Err error
}

func (e *PassError) Error() string {
	if e.Generation >= 0 {
		return fmt.Sprintf("memory %s (generation %d) failed for session %s: %v", e.Op, e.Generation, e.SessionKey, e.Err)
	}
	return fmt.Sprintf("memory %s failed for session %s: %v", e.Op, e.SessionKey, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}
