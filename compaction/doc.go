// Package compaction keeps an agent transcript inside the model's context
// window.
//
// When a transcript grows too long, Fit reduces it in two steps, each run only
// if the previous one was not enough:
//
//   - Tool-output pruning (ToolOutputPruner): results of old tool calls are
//     replaced with a short placeholder. No model call is made. The most recent
//     user turns are never touched.
//
//   - Summarization (Pipeline): older messages are replaced with a summary
//     produced by a Summarizer. Recent history is kept verbatim but capped at a
//     share of the context window by PruneHistoryForContextShare; whatever it
//     drops is summarized as well.
//
// # Usage
//
//	compactor := compaction.New(&compaction.Config{
//	    ContextWindow:   200000,
//	    Trigger:         0.85,
//	    MaxHistoryShare: 0.5,
//	}, summarizer, logger)
//
//	result := compactor.Fit(ctx, sessionKey, messages, previousSummary)
//	if result.Strategy == compaction.StrategySummarization {
//	    log.Printf("Compacted: %d -> %d tokens", result.OriginalTokens, result.CompactedTokens)
//	}
//
// # Summarization Ladder
//
// Pipeline.SummarizeInStages splits large inputs into balanced shares
// (SplitByShare), summarizes each, then merges the partial summaries. Each
// summary call goes through SummarizeWithFallback, which sends chunks no
// larger than the adaptive chunk size (SplitByMaxTokens) sequentially. If the
// summarizer fails, messages larger than half the context window are replaced
// by omission notes and the rest is retried; if that fails too, a fixed
// description of what was lost is returned. The pipeline never returns an
// error.
//
// # Token Counting
//
// All sizes come from package tokens, a character-based approximation. Hard
// ceilings are always compared against estimates scaled by
// tokens.SafetyMargin.
package compaction
