package hooks

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *slog.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger. A nil
// logger uses slog.Default.
func NewLoggingHooks(logger *slog.Logger) *LoggingHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHooks{logger: logger}
}

// Register adds every logging hook to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnAfterObserve(h.AfterObserve)
	r.OnAfterReflect(h.AfterReflect)
}

// BeforeCompaction logs the budget position that triggered compaction.
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, sessionKey string, stats *compaction.Stats) error {
	h.logger.InfoContext(ctx, "context over budget",
		"session_key", sessionKey,
		"messages", stats.TotalMessages,
		"tokens", stats.SafeTokens,
		"usage", humanize.FtoaWithDigits(stats.UsagePercent, 1)+"%",
	)
	return nil
}

// AfterCompaction logs what compaction did.
func (h *LoggingHooks) AfterCompaction(ctx context.Context, sessionKey string, result *compaction.Result) error {
	reduction := float64(0)
	if result.OriginalTokens > 0 {
		reduction = float64(result.OriginalTokens-result.CompactedTokens) / float64(result.OriginalTokens) * 100
	}

	args := []any{
		"session_key", sessionKey,
		"strategy", string(result.Strategy),
		"original_tokens", result.OriginalTokens,
		"compacted_tokens", result.CompactedTokens,
		"reduction", humanize.FtoaWithDigits(reduction, 1) + "%",
		"duration", result.Duration,
	}
	if result.ToolOutputs != nil {
		args = append(args, "pruned_tool_outputs", result.ToolOutputs.PrunedBlocks)
	}
	if result.MessagesSummarized > 0 {
		args = append(args, "messages_summarized", result.MessagesSummarized)
	}
	h.logger.InfoContext(ctx, "compaction complete", args...)
	return nil
}

// AfterObserve logs stored observations. Contents are logged at debug level.
func (h *LoggingHooks) AfterObserve(ctx context.Context, sessionKey string, observations []*memory.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	last := observations[len(observations)-1]
	h.logger.InfoContext(ctx, "observations recorded",
		"session_key", sessionKey,
		"count", len(observations),
		"messages", last.MessageEndIndex-observations[0].MessageStartIndex,
		"high_water_mark", last.MessageEndIndex,
	)
	for _, obs := range observations {
		h.logger.DebugContext(ctx, "observation",
			"session_key", sessionKey,
			"priority", obs.Priority.String(),
			"content", obs.Content,
		)
	}
	return nil
}

// AfterReflect logs each condensed generation.
func (h *LoggingHooks) AfterReflect(ctx context.Context, sessionKey string, result *memory.ReflectResult) error {
	for _, level := range result.Levels {
		h.logger.InfoContext(ctx, "observations condensed",
			"session_key", sessionKey,
			"generation", level.Generation,
			"replaced", level.Replaced,
			"produced", level.Produced,
			"input_tokens", level.InputTokens,
			"output_tokens", level.OutputTokens,
		)
	}
	return nil
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Register adds every metrics hook to r.
func (h *MetricsHooks) Register(r *Registry) {
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnAfterObserve(h.AfterObserve)
	r.OnAfterReflect(h.AfterReflect)
}

// AfterCompaction records compaction metrics
func (h *MetricsHooks) AfterCompaction(ctx context.Context, sessionKey string, result *compaction.Result) error {
	tags := map[string]string{"strategy": string(result.Strategy)}

	h.OnMetric("context.compaction.original_tokens", float64(result.OriginalTokens), tags)
	h.OnMetric("context.compaction.compacted_tokens", float64(result.CompactedTokens), tags)
	if result.ToolOutputs != nil {
		h.OnMetric("context.compaction.pruned_tokens", float64(result.ToolOutputs.PrunedTokens), tags)
	}
	if result.OriginalTokens > 0 {
		h.OnMetric("context.compaction.reduction_pct",
			float64(result.OriginalTokens-result.CompactedTokens)/float64(result.OriginalTokens)*100, tags)
	}
	return nil
}

// AfterObserve records observation counts
func (h *MetricsHooks) AfterObserve(ctx context.Context, sessionKey string, observations []*memory.Observation) error {
	tokens := 0
	for _, obs := range observations {
		tokens += obs.TokenEstimate
	}
	h.OnMetric("memory.observations.count", float64(len(observations)), nil)
	h.OnMetric("memory.observations.tokens", float64(tokens), nil)
	return nil
}

// AfterReflect records reflection metrics per generation
func (h *MetricsHooks) AfterReflect(ctx context.Context, sessionKey string, result *memory.ReflectResult) error {
	for _, level := range result.Levels {
		tags := map[string]string{"generation": strconv.Itoa(level.Generation)}
		h.OnMetric("memory.reflection.input_tokens", float64(level.InputTokens), tags)
		h.OnMetric("memory.reflection.output_tokens", float64(level.OutputTokens), tags)
	}
	return nil
}
