// Package worker drives Observational Memory in the background.
//
// Each transcript file gets its own goroutine running a small state machine
// (see [State]). Writes to the file are coalesced by a debounce timer, at most
// one pass runs per session at a time, and writes that arrive during a pass
// schedule exactly one follow-up pass. Pass failures are logged and dropped;
// they never reach the caller that reported the change.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/agentctx/memory"
	"github.com/youssefsiam38/agentctx/transcript"
	"github.com/youssefsiam38/agentctx/types"
)

// Logger interface for worker logging.
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

// Processor runs one Observer/Reflector pass over a transcript.
// *memory.Memory implements it.
type Processor interface {
	Process(ctx context.Context, sessionKey string, messages []*types.Message) (*memory.ProcessResult, error)
}

// Config holds configuration for the worker.
type Config struct {
	// Debounce is how long a transcript must stay quiet before a pass runs.
	// Default: 5s
	Debounce time.Duration

	// IdleTimeout is how long an idle session keeps its goroutine.
	// Default: 10m
	IdleTimeout time.Duration

	// PassTimeout bounds a single pass. Zero means no bound beyond the
	// worker's context.
	PassTimeout time.Duration

	// Logger receives worker logs. Default discards them.
	Logger Logger

	// OnError is called when a pass fails.
	OnError func(sessionKey string, err error)

	// OnPass is called after every successful pass that reached the processor.
	OnPass func(sessionKey string, result *memory.ProcessResult)
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() *Config {
	return &Config{
		Debounce:    5 * time.Second,
		IdleTimeout: 10 * time.Minute,
	}
}

// Worker schedules memory passes for changed transcripts.
type Worker struct {
	processor Processor
	config    *Config
	logger    Logger

	mu       sync.Mutex
	sessions map[string]*session

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a worker. Zero fields in config take their defaults.
func New(processor Processor, config *Config) *Worker {
	cfg := DefaultConfig()
	if config != nil {
		if config.Debounce > 0 {
			cfg.Debounce = config.Debounce
		}
		if config.IdleTimeout > 0 {
			cfg.IdleTimeout = config.IdleTimeout
		}
		if config.PassTimeout > 0 {
			cfg.PassTimeout = config.PassTimeout
		}
		cfg.Logger = config.Logger
		cfg.OnError = config.OnError
		cfg.OnPass = config.OnPass
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Worker{
		processor: processor,
		config:    cfg,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// Start makes the worker accept change notifications. Sessions stop when ctx
// is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker already started")
	}

	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.Info("memory worker started",
		"debounce", w.config.Debounce,
		"idle_timeout", w.config.IdleTimeout,
	)
	return nil
}

// Stop cancels running passes and waits for every session goroutine to exit.
func (w *Worker) Stop(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}

	w.mu.Lock()
	w.cancel()
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	clear(w.sessions)
	w.mu.Unlock()

	w.started.Store(false)
	w.logger.Info("memory worker stopped")
	return nil
}

// IsRunning returns true if the worker is running.
func (w *Worker) IsRunning() bool {
	return w.started.Load()
}

// Notify reports that the transcript at path was written. It never blocks.
func (w *Worker) Notify(path string) {
	if !transcript.IsTranscript(path) {
		return
	}
	key := transcript.SessionKey(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started.Load() || w.ctx.Err() != nil {
		w.logger.Debug("change ignored, worker not running", "session_key", key)
		return
	}

	s, ok := w.sessions[key]
	if !ok {
		s = newSession(w, key, path)
		w.sessions[key] = s
		w.wg.Add(1)
		go s.run(w.ctx)
	}

	select {
	case s.events <- struct{}{}:
	default:
		// A change is already queued; the session will see it.
	}
}

// Watch feeds changes from watcher into the worker until ctx is done.
func (w *Worker) Watch(ctx context.Context, watcher *transcript.Watcher) error {
	err := watcher.Run(ctx, w.Notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Sessions returns the number of sessions with a live goroutine.
func (w *Worker) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// expire removes an idle session unless a change is queued for it.
func (w *Worker) expire(s *session) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(s.events) > 0 {
		return false
	}
	if w.sessions[s.key] == s {
		delete(w.sessions, s.key)
	}
	return true
}

func (w *Worker) logError(sessionKey string, err error) {
	if w.config.OnError != nil {
		w.config.OnError(sessionKey, err)
	}
	w.logger.Error("memory pass failed", "session_key", sessionKey, "error", err)
}
