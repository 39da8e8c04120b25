// Package hooks lets callers observe compaction and memory passes.
//
// Hooks run synchronously on the goroutine doing the work. A hook error stops
// the remaining hooks of that kind and is returned from the Trigger call; the
// engine logs it and carries on, so hooks cannot break a turn.
package hooks

import (
	"context"
	"sync"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
)

// BeforeCompactionHook is called when a transcript is over budget, before any
// pruning or summarization.
type BeforeCompactionHook func(ctx context.Context, sessionKey string, stats *compaction.Stats) error

// AfterCompactionHook is called after a transcript was fitted.
type AfterCompactionHook func(ctx context.Context, sessionKey string, result *compaction.Result) error

// AfterObserveHook is called after the Observer stored new observations.
type AfterObserveHook func(ctx context.Context, sessionKey string, observations []*memory.Observation) error

// AfterReflectHook is called after the Reflector condensed at least one
// generation.
type AfterReflectHook func(ctx context.Context, sessionKey string, result *memory.ReflectResult) error

// Registry holds all registered hooks
type Registry struct {
	mu               sync.RWMutex
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
	afterObserve     []AfterObserveHook
	afterReflect     []AfterReflectHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeCompaction registers a hook to be called before compaction
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// OnAfterObserve registers a hook to be called after observations are stored
func (r *Registry) OnAfterObserve(hook AfterObserveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterObserve = append(r.afterObserve, hook)
}

// OnAfterReflect registers a hook to be called after a reflection
func (r *Registry) OnAfterReflect(hook AfterReflectHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterReflect = append(r.afterReflect, hook)
}

// TriggerBeforeCompaction calls all registered before-compaction hooks
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, sessionKey string, stats *compaction.Stats) error {
	for _, hook := range snapshot(r, func() []BeforeCompactionHook { return r.beforeCompaction }) {
		if err := hook(ctx, sessionKey, stats); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks
func (r *Registry) TriggerAfterCompaction(ctx context.Context, sessionKey string, result *compaction.Result) error {
	for _, hook := range snapshot(r, func() []AfterCompactionHook { return r.afterCompaction }) {
		if err := hook(ctx, sessionKey, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterObserve calls all registered after-observe hooks
func (r *Registry) TriggerAfterObserve(ctx context.Context, sessionKey string, observations []*memory.Observation) error {
	for _, hook := range snapshot(r, func() []AfterObserveHook { return r.afterObserve }) {
		if err := hook(ctx, sessionKey, observations); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterReflect calls all registered after-reflect hooks
func (r *Registry) TriggerAfterReflect(ctx context.Context, sessionKey string, result *memory.ReflectResult) error {
	for _, hook := range snapshot(r, func() []AfterReflectHook { return r.afterReflect }) {
		if err := hook(ctx, sessionKey, result); err != nil {
			return err
		}
	}
	return nil
}

// snapshot copies a hook list under the read lock so hooks may register
// further hooks without deadlocking.
func snapshot[H any](r *Registry, list func() []H) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]H(nil), list()...)
}
