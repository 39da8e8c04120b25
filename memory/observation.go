package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Origin records how an Observation was produced. It is a closed set:
// RawOrigin for direct compression of transcript messages and
// ReflectedOrigin for re-compression of a lower generation.
type Origin interface {
	// Generation is 0 for raw observations and the reflection depth otherwise.
	Generation() int

	isOrigin()
}

// RawOrigin marks an observation compressed directly from the transcript
// range [MessageStartIndex, MessageEndIndex).
type RawOrigin struct{}

func (RawOrigin) Generation() int { return 0 }
func (RawOrigin) isOrigin()       {}

// ReflectedOrigin marks an observation produced by the Reflector. Its span is
// the union of the spans of the rows it replaced.
type ReflectedOrigin struct {
	Depth int
}

func (o ReflectedOrigin) Generation() int { return o.Depth }
func (ReflectedOrigin) isOrigin()         {}

// OriginForGeneration maps a stored generation number back to an Origin.
func OriginForGeneration(generation int) (Origin, error) {
	switch {
	case generation == 0:
		return RawOrigin{}, nil
	case generation > 0:
		return ReflectedOrigin{Depth: generation}, nil
	default:
		return nil, fmt.Errorf("%w: negative generation %d", ErrInvalidObservation, generation)
	}
}

// Priority ranks how much an observation matters to future turns.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// ParsePriority parses "low", "medium" or "high", case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium", "med":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	}
	return 0, false
}

// Observation is a dense note distilled from a range of transcript messages.
type Observation struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`

	// MessageStartIndex and MessageEndIndex delimit the half-open range of
	// transcript messages this observation covers.
	MessageStartIndex int `json:"message_start_index"`
	MessageEndIndex   int `json:"message_end_index"`

	TokenEstimate int      `json:"token_estimate"`
	Origin        Origin   `json:"-"`
	Priority      Priority `json:"priority"`
}

// Generation returns the observation's generation, 0 when Origin is unset.
func (o *Observation) Generation() int {
	if o.Origin == nil {
		return 0
	}
	return o.Origin.Generation()
}

// Validate checks the invariants every stored observation satisfies.
func (o *Observation) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidObservation)
	}
	if o.SessionKey == "" {
		return fmt.Errorf("%w: missing session key", ErrInvalidObservation)
	}
	if o.MessageStartIndex < 0 || o.MessageEndIndex < o.MessageStartIndex {
		return fmt.Errorf("%w: invalid range [%d,%d)", ErrInvalidObservation, o.MessageStartIndex, o.MessageEndIndex)
	}
	if !o.Priority.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidObservation, o.Priority)
	}
	if o.TokenEstimate < 0 {
		return fmt.Errorf("%w: negative token estimate", ErrInvalidObservation)
	}

	switch origin := o.Origin.(type) {
	case RawOrigin:
		if o.MessageStartIndex == o.MessageEndIndex {
			return fmt.Errorf("%w: raw observation covers an empty range", ErrInvalidObservation)
		}
	case ReflectedOrigin:
		if origin.Depth < 1 {
			return fmt.Errorf("%w: reflected depth %d", ErrInvalidObservation, origin.Depth)
		}
	default:
		return fmt.Errorf("%w: missing origin", ErrInvalidObservation)
	}
	return nil
}

// Store persists observations, strictly scoped per session key.
type Store interface {
	// Insert stores rows in one transaction. Raw rows must not start before
	// the session's high-water mark.
	Insert(ctx context.Context, rows ...*Observation) error

	// List returns a session's rows ordered by generation, then most recent
	// first. A nil generation lists all of them.
	List(ctx context.Context, sessionKey string, generation *int) ([]*Observation, error)

	// HighWaterMark is the end of the last observed message range, 0 if none.
	HighWaterMark(ctx context.Context, sessionKey string) (int, error)

	// TokenSum totals TokenEstimate, optionally for one generation.
	TokenSum(ctx context.Context, sessionKey string, generation *int) (int, error)

	// ReplaceGeneration atomically deletes every row of generation and
	// inserts rows, which must all belong to a deeper generation.
	ReplaceGeneration(ctx context.Context, sessionKey string, generation int, rows []*Observation) error

	// DeleteSession removes every row of a session.
	DeleteSession(ctx context.Context, sessionKey string) error

	Close() error
}

// ModelConfig selects the model behind a Generate call.
type ModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateRequest is one Observer or Reflector call.
type GenerateRequest struct {
	SystemPrompt string
	UserText     string
	Model        ModelConfig
}

// Generator is the text-generation collaborator behind the Observer and
// Reflector. Implementations may fail; callers treat that as a skipped pass.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// Generation is a convenience for the *int filters of Store.
func Generation(n int) *int {
	return &n
}
