package agentctx

import (
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/memory"
)

// Option is a functional option for configuring an Engine
type Option func(*options) error

type options struct {
	logger     Logger
	store      memory.Store
	summarizer compaction.Summarizer
	generator  memory.Generator
	hooks      *hooks.Registry
}

// WithLogger sets the logger. *slog.Logger satisfies Logger.
func WithLogger(logger Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithStore sets the observation store. The caller keeps ownership; Close
// does not close it.
func WithStore(store memory.Store) Option {
	return func(o *options) error {
		if store == nil {
			return NewEngineError("WithStore", ErrInvalidConfig).WithContext("reason", "nil store")
		}
		o.store = store
		return nil
	}
}

// WithSummarizer sets the compaction summarizer.
func WithSummarizer(s compaction.Summarizer) Option {
	return func(o *options) error {
		o.summarizer = s
		return nil
	}
}

// WithGenerator sets the Observer/Reflector generator.
func WithGenerator(g memory.Generator) Option {
	return func(o *options) error {
		o.generator = g
		return nil
	}
}

// WithHooks sets the hook registry.
func WithHooks(r *hooks.Registry) Option {
	return func(o *options) error {
		o.hooks = r
		return nil
	}
}
