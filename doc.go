// Package agentctx keeps the transcript of a long-running agent inside the
// model's context window.
//
// An Engine combines two mechanisms:
//
//   - Fit, called before every model call, estimates the transcript's token
//     weight and, when it is over budget, prunes old tool outputs and then
//     summarizes older history. It runs synchronously and never fails: the
//     worst case is the transcript returned unchanged.
//   - Observational Memory, driven in the background by a worker, compresses
//     observed ranges of the transcript into prioritized observations and
//     periodically condenses those into coarser generations. Observations
//     live in a SQL store and survive restarts.
//
// # Quick Start
//
//	engine, err := agentctx.New(ctx, &agentctx.Config{
//	    Storage: agentctx.StorageConfig{DSN: "observations.db"},
//	}, agentctx.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	// Before each model call:
//	result := engine.Fit(ctx, sessionKey, messages, previousSummary)
//	messages = result.Messages
//
//	// In the system prompt:
//	observations, _ := engine.Observations(ctx, sessionKey)
//
// # Background Worker
//
// The worker watches transcript files and runs one memory pass per session
// once writes go quiet:
//
//	w, _ := engine.NewWorker()
//	w.Start(ctx)
//	defer w.Stop(ctx)
//
//	watcher, _ := transcript.NewWatcher(logger, dir)
//	go w.Watch(ctx, watcher)
//
// # Configuration
//
// LoadConfig reads YAML or JSON-with-comments:
//
//	compaction:
//	  context_window: 200000
//	  reserve_tokens: 16384
//	memory:
//	  observer_threshold_tokens: 30000
//	worker:
//	  debounce: 5s
//	storage:
//	  driver: sqlite3
//	  dsn: ${HOME}/.agentctx/observations.db
package agentctx
