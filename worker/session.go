package worker

import (
	"context"
	"time"

	"github.com/zeebo/blake3"

	"github.com/youssefsiam38/agentctx/transcript"
)

type session struct {
	w    *Worker
	key  string
	path string

	// events carries FileChanged notifications; one queued change is enough.
	events chan struct{}

	// digest of the transcript at the last successful pass. Only the pass
	// goroutine touches it, and passes never overlap.
	digest [32]byte
}

func newSession(w *Worker, key, path string) *session {
	return &session{
		w:      w,
		key:    key,
		path:   path,
		events: make(chan struct{}, 1),
	}
}

func (s *session) run(ctx context.Context) {
	defer s.w.wg.Done()

	state := Idle

	debounce := time.NewTimer(s.w.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	idle := time.NewTimer(s.w.config.IdleTimeout)
	defer idle.Stop()

	passDone := make(chan struct{}, 1)

	apply := func(e Event) {
		prev := state
		var action Action
		state, action = next(state, e)

		switch action {
		case ActionArmTimer:
			debounce.Reset(s.w.config.Debounce)
		case ActionStartPass:
			s.w.wg.Add(1)
			go func() {
				defer s.w.wg.Done()
				s.pass(ctx)
				passDone <- struct{}{}
			}()
		}

		if state == Idle {
			idle.Reset(s.w.config.IdleTimeout)
		} else {
			idle.Stop()
		}
		if state != prev {
			s.w.logger.Debug("session transition",
				"session_key", s.key,
				"event", e.String(),
				"from", prev.String(),
				"to", state.String(),
			)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.events:
			apply(FileChanged)
		case <-debounce.C:
			apply(DebounceElapsed)
		case <-passDone:
			apply(PassComplete)
		case <-idle.C:
			if state == Idle && s.w.expire(s) {
				s.w.logger.Debug("session expired", "session_key", s.key)
				return
			}
		}
	}
}

// pass reads the transcript and hands it to the processor. Unchanged
// transcripts are skipped.
func (s *session) pass(ctx context.Context) {
	if s.w.config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.w.config.PassTimeout)
		defer cancel()
	}

	snap, err := transcript.ReadFile(s.path)
	if err != nil {
		s.w.logError(s.key, err)
		return
	}

	digest := blake3.Sum256(snap.Data)
	if digest == s.digest {
		s.w.logger.Debug("transcript unchanged, skipping pass", "session_key", s.key)
		return
	}

	start := time.Now()
	result, err := s.w.processor.Process(ctx, s.key, snap.Messages)
	if err != nil {
		if ctx.Err() != nil {
			s.w.logger.Debug("memory pass cancelled", "session_key", s.key, "error", err)
			return
		}
		s.w.logError(s.key, err)
		return
	}
	s.digest = digest

	observed := 0
	reflected := 0
	if result != nil {
		observed = len(result.Observed)
		if result.Reflected != nil {
			reflected = len(result.Reflected.Levels)
		}
	}
	s.w.logger.Info("memory pass complete",
		"session_key", s.key,
		"messages", len(snap.Messages),
		"observed", observed,
		"reflected_levels", reflected,
		"duration", time.Since(start),
	)

	if s.w.config.OnPass != nil {
		s.w.config.OnPass(s.key, result)
	}
}
