package agentctx

import (
	"context"
	"fmt"
	"os"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/llm"
	"github.com/youssefsiam38/agentctx/memory"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/transcript"
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/worker"
)

// Logger interface for engine logging. *slog.Logger satisfies it.
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

// Engine keeps transcripts within budget. It is safe for concurrent use
// across sessions; calls for one session must be serialized by the caller.
type Engine struct {
	config    *Config
	logger    Logger
	hooks     *hooks.Registry
	compactor *compaction.Compactor
	memory    *memory.Memory

	// closeStore is set when the engine opened the store itself.
	closeStore func() error
}

// New creates an Engine. A nil config uses DefaultConfig.
//
// Without WithSummarizer or WithGenerator, an Anthropic client is created
// when an API key is configured. Observational Memory is enabled when a
// store is supplied with WithStore or cfg.Storage.DSN is set.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewEngineError("New", err)
	}

	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = noopLogger{}
	}
	if o.hooks == nil {
		o.hooks = hooks.NewRegistry()
	}

	if o.summarizer == nil || o.generator == nil {
		if client := defaultClient(cfg.LLM); client != nil {
			if o.summarizer == nil {
				o.summarizer = client
			}
			if o.generator == nil {
				o.generator = client
			}
		}
	}

	e := &Engine{
		config:    cfg,
		logger:    o.logger,
		hooks:     o.hooks,
		compactor: compaction.New(cfg.Compaction, o.summarizer, o.logger),
	}

	store := o.store
	if store == nil && cfg.Storage.DSN != "" {
		opened, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, NewEngineError("New", err).WithContext("driver", cfg.Storage.Driver)
		}
		store = opened
		e.closeStore = opened.Close
	}

	if store != nil {
		if o.generator == nil {
			if e.closeStore != nil {
				_ = e.closeStore()
			}
			return nil, NewEngineError("New", ErrNoGenerator)
		}
		e.memory = memory.New(store, o.generator, cfg.Memory, o.logger)
	}

	return e, nil
}

func defaultClient(cfg LLMConfig) *llm.Anthropic {
	if cfg.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil
	}
	return llm.NewAnthropic(llm.AnthropicConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
	})
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Hooks returns the hook registry.
func (e *Engine) Hooks() *hooks.Registry {
	return e.hooks
}

// Compactor returns the underlying compactor.
func (e *Engine) Compactor() *compaction.Compactor {
	return e.compactor
}

// Memory returns the Observational Memory coordinator, or nil when memory is
// disabled.
func (e *Engine) Memory() *memory.Memory {
	return e.memory
}

// Stats reports where messages stand against the budget.
func (e *Engine) Stats(messages []*types.Message) *compaction.Stats {
	return e.compactor.GetStats(messages)
}

// Fit answers "do we fit?" before a model call. When the transcript is over
// budget it prunes tool outputs and, if needed, summarizes older history.
// Fit never fails; the worst case is the input returned unchanged. The
// durable transcript is never modified.
func (e *Engine) Fit(ctx context.Context, sessionKey string, messages []*types.Message, previousSummary string) *compaction.Result {
	stats := e.compactor.GetStats(messages)
	if stats.NeedsCompaction {
		if err := e.hooks.TriggerBeforeCompaction(ctx, sessionKey, stats); err != nil {
			e.logger.Warn("before-compaction hook failed", "session_key", sessionKey, "error", err)
		}
	}

	result := e.compactor.Fit(ctx, sessionKey, messages, previousSummary)

	if result.Strategy != compaction.StrategyNone {
		if err := e.hooks.TriggerAfterCompaction(ctx, sessionKey, result); err != nil {
			e.logger.Warn("after-compaction hook failed", "session_key", sessionKey, "error", err)
		}
	}
	return result
}

// Process runs one Observer and Reflector pass over a session's transcript.
// It implements worker.Processor.
func (e *Engine) Process(ctx context.Context, sessionKey string, messages []*types.Message) (*memory.ProcessResult, error) {
	if e.memory == nil {
		return nil, ErrMemoryDisabled
	}

	result, err := e.memory.Process(ctx, sessionKey, messages)
	if result != nil {
		if len(result.Observed) > 0 {
			if hookErr := e.hooks.TriggerAfterObserve(ctx, sessionKey, result.Observed); hookErr != nil {
				e.logger.Warn("after-observe hook failed", "session_key", sessionKey, "error", hookErr)
			}
		}
		if result.Reflected.Reflected() {
			if hookErr := e.hooks.TriggerAfterReflect(ctx, sessionKey, result.Reflected); hookErr != nil {
				e.logger.Warn("after-reflect hook failed", "session_key", sessionKey, "error", hookErr)
			}
		}
	}
	if err != nil {
		return result, NewEngineErrorWithSession("Process", sessionKey, err)
	}
	return result, nil
}

// ProcessFile reads a transcript file and processes it. The session key is
// the file name without its extension.
func (e *Engine) ProcessFile(ctx context.Context, path string) (*memory.ProcessResult, error) {
	snap, err := transcript.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("ProcessFile", err).WithContext("path", path)
	}
	return e.Process(ctx, transcript.SessionKey(path), snap.Messages)
}

// Observations renders the session's observations for a system prompt.
// It returns "" when there are none.
func (e *Engine) Observations(ctx context.Context, sessionKey string) (string, error) {
	if e.memory == nil {
		return "", ErrMemoryDisabled
	}
	text, err := e.memory.Context(ctx, sessionKey)
	if err != nil {
		return "", NewEngineErrorWithSession("Observations", sessionKey, err)
	}
	return text, nil
}

// NewWorker creates a background worker that drives this engine's memory
// passes. The caller starts and stops it.
func (e *Engine) NewWorker() (*worker.Worker, error) {
	if e.memory == nil {
		return nil, ErrMemoryDisabled
	}
	cfg := e.config.workerConfig()
	cfg.Logger = e.logger
	return worker.New(e, cfg), nil
}

// Close releases the store if the engine opened it.
func (e *Engine) Close() error {
	if e.closeStore == nil {
		return nil
	}
	err := e.closeStore()
	e.closeStore = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
