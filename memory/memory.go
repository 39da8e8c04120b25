package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/youssefsiam38/agentctx/types"
)

// Logger interface for memory logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// ProcessResult is the outcome of one Observer + Reflector pass.
type ProcessResult struct {
	// Observed are the raw observations inserted by the Observer, if any.
	Observed []*Observation

	// Reflected describes the generations the Reflector condensed.
	Reflected *ReflectResult
}

// Memory coordinates the Observer and Reflector over a Store. Passes for the
// same session must not run concurrently; the worker serializes them.
type Memory struct {
	store     Store
	generator Generator
	config    *Config
	logger    Logger
}

// New creates a Memory. If config is nil, default configuration is used.
func New(store Store, generator Generator, config *Config, logger Logger) *Memory {
	if config == nil {
		config = DefaultConfig()
	} else {
		config.ApplyDefaults()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Memory{
		store:     store,
		generator: generator,
		config:    config,
		logger:    logger,
	}
}

// Config returns the memory configuration.
func (m *Memory) Config() *Config {
	return m.config
}

// Store returns the underlying observation store.
func (m *Memory) Store() Store {
	return m.store
}

// Process runs the Observer over messages, then the Reflector. A failed
// Observer skips the Reflector.
func (m *Memory) Process(ctx context.Context, sessionKey string, messages []*types.Message) (*ProcessResult, error) {
	observed, err := m.RunObserver(ctx, sessionKey, messages)
	if err != nil {
		return nil, err
	}

	reflected, err := m.RunReflector(ctx, sessionKey)
	result := &ProcessResult{Observed: observed, Reflected: reflected}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Context renders a session's observations as an <observations> block for a
// system prompt. Coarser generations come first since they cover older
// history. It returns "" when the session has no observations.
func (m *Memory) Context(ctx context.Context, sessionKey string) (string, error) {
	rows, err := m.store.List(ctx, sessionKey, nil)
	if err != nil {
		return "", fmt.Errorf("list observations: %w", err)
	}

	slices.SortStableFunc(rows, func(a, b *Observation) int {
		return cmp.Or(
			cmp.Compare(b.Generation(), a.Generation()),
			cmp.Compare(a.MessageStartIndex, b.MessageStartIndex),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
	return renderContext(rows), nil
}

// Clear deletes every observation of a session.
func (m *Memory) Clear(ctx context.Context, sessionKey string) error {
	if err := m.store.DeleteSession(ctx, sessionKey); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionKey, err)
	}
	return nil
}

func (m *Memory) modelConfig() ModelConfig {
	return ModelConfig{
		Model:     m.config.Model,
		MaxTokens: m.config.MaxOutputTokens,
	}
}
