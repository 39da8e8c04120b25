package compaction

import (
	"context"
	"time"

	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// Logger interface for compaction logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Strategy names what a Fit call ended up doing.
type Strategy string

const (
	// StrategyNone means the transcript already fit.
	StrategyNone Strategy = "none"

	// StrategyPrune means clearing old tool outputs was enough.
	StrategyPrune Strategy = "prune"

	// StrategySummarization means older history was replaced by a summary.
	StrategySummarization Strategy = "summarization"
)

// Result contains the outcome of a compaction operation.
type Result struct {
	// Messages is the new active transcript. The durable transcript is untouched.
	Messages []*types.Message

	// Strategy is what was applied.
	Strategy Strategy

	// Summary is the generated summary, empty unless Strategy is
	// StrategySummarization.
	Summary string

	// OriginalTokens is the estimated token count before compaction.
	OriginalTokens int

	// CompactedTokens is the estimated token count after compaction.
	CompactedTokens int

	// MessagesSummarized is the number of messages replaced by the summary.
	MessagesSummarized int

	// ToolOutputs is the tool-output pruning pass, if one ran.
	ToolOutputs *PruneResult

	// History is the history-share pruning pass, if compaction ran.
	History *HistoryPruneResult

	// Duration is how long the compaction took.
	Duration time.Duration
}

// Stats describes a transcript's budget position.
type Stats struct {
	TotalMessages int

	// TotalTokens is the raw estimate; SafeTokens includes the safety margin.
	TotalTokens int
	SafeTokens  int

	// UsagePercent is the percentage of context window used, with margin.
	UsagePercent float64

	// NeedsCompaction indicates if compaction should be triggered.
	NeedsCompaction bool
}

// Compactor decides whether a transcript fits and, if not, prunes and
// summarizes it. It is safe for concurrent use; callers serialize per session.
type Compactor struct {
	config      *Config
	logger      Logger
	pipeline    *Pipeline
	pruner      *ToolOutputPruner
	partitioner *Partitioner
}

// New creates a new Compactor with the given configuration.
// If config is nil, default configuration is used.
func New(config *Config, summarizer Summarizer, logger Logger) *Compactor {
	if config == nil {
		config = DefaultConfig()
	} else {
		config.ApplyDefaults()
	}

	if logger == nil {
		logger = noopLogger{}
	}

	return &Compactor{
		config:      config,
		logger:      logger,
		pipeline:    NewPipeline(summarizer, logger),
		pruner:      NewToolOutputPruner(config.PreserveTurns, config.PreserveTokens, config.MinSavings),
		partitioner: NewPartitioner(config.PreserveLastN, config.KeepRecentTokens),
	}
}

// GetStats returns statistics about a transcript's budget position.
func (c *Compactor) GetStats(messages []*types.Message) *Stats {
	total := tokens.EstimateAll(messages)
	safe := tokens.WithMargin(total)
	return &Stats{
		TotalMessages:   len(messages),
		TotalTokens:     total,
		SafeTokens:      safe,
		UsagePercent:    float64(safe) / float64(c.config.ContextWindow) * 100,
		NeedsCompaction: safe >= c.config.TriggerThreshold(),
	}
}

// NeedsCompaction reports whether messages exceed the trigger threshold.
func (c *Compactor) NeedsCompaction(messages []*types.Message) bool {
	return c.GetStats(messages).NeedsCompaction
}

// Fit returns a transcript that fits the budget. It prunes tool outputs
// first and summarizes only if that is not enough. Fit never fails: on any
// problem the best transcript produced so far is returned.
func (c *Compactor) Fit(ctx context.Context, sessionKey string, messages []*types.Message, previousSummary string) *Result {
	start := time.Now()
	original := tokens.EstimateAll(messages)

	result := &Result{
		Messages:        messages,
		Strategy:        StrategyNone,
		OriginalTokens:  original,
		CompactedTokens: original,
	}

	if !c.NeedsCompaction(messages) {
		result.Duration = time.Since(start)
		return result
	}

	current := messages
	if !c.config.PreserveToolOutputs {
		pruned := c.pruner.Prune(messages)
		result.ToolOutputs = pruned
		current = pruned.Messages

		if pruned.PrunedBlocks > 0 {
			result.Strategy = StrategyPrune
			result.Messages = current
			result.CompactedTokens = tokens.EstimateAll(current)
			c.logger.Debug("tool outputs pruned",
				"session_key", sessionKey,
				"blocks", pruned.PrunedBlocks,
				"tokens_saved", pruned.PrunedTokens,
			)
		}

		if !c.NeedsCompaction(current) {
			result.Duration = time.Since(start)
			return result
		}
	}

	compacted, err := c.Compact(ctx, sessionKey, current, previousSummary)
	if err != nil {
		c.logger.Warn("compaction skipped",
			"session_key", sessionKey,
			"error", err,
		)
		result.Duration = time.Since(start)
		return result
	}

	compacted.OriginalTokens = original
	compacted.ToolOutputs = result.ToolOutputs
	compacted.Duration = time.Since(start)
	return compacted
}

// Compact summarizes everything except the recent tail and returns the new
// active transcript, headed by the summary message.
func (c *Compactor) Compact(ctx context.Context, sessionKey string, messages []*types.Message, previousSummary string) (*Result, error) {
	start := time.Now()

	c.logger.Info("starting compaction", "session_key", sessionKey, "messages", len(messages))

	toSummarize, kept := c.partitioner.Partition(messages)

	history := PruneHistoryForContextShare(kept, c.config.ContextWindow, c.config.MaxHistoryShare, c.config.Parts)
	if len(history.Dropped) > 0 {
		c.logger.Debug("history pruned to context share",
			"session_key", sessionKey,
			"dropped_chunks", history.DroppedChunks,
			"dropped_messages", history.DroppedMessages,
			"dropped_tokens", history.DroppedTokens,
			"kept_tokens", history.KeptTokens,
			"budget_tokens", history.BudgetTokens,
		)
		toSummarize = append(append([]*types.Message(nil), toSummarize...), history.Dropped...)
	}

	if len(toSummarize) == 0 {
		return nil, NewCompactionError("Compact", ErrNoMessagesToCompact).WithSession(sessionKey)
	}

	summary := c.pipeline.SummarizeInStages(ctx, StageParams{
		Messages:            toSummarize,
		ContextWindow:       c.config.ContextWindow,
		Model:               c.config.SummarizerModel,
		ReserveTokens:       c.config.ReserveTokens,
		APIKey:              c.config.APIKey,
		Instructions:        c.config.Instructions,
		PreviousSummary:     previousSummary,
		Parts:               c.config.Parts,
		MinMessagesForSplit: c.config.MinMessagesForSplit,
		BaseChunkRatio:      c.config.BaseChunkRatio,
		MinChunkRatio:       c.config.MinChunkRatio,
	})

	out := make([]*types.Message, 0, len(history.Messages)+1)
	out = append(out, newSummaryMessage(summary))
	out = append(out, history.Messages...)

	result := &Result{
		Messages:           out,
		Strategy:           StrategySummarization,
		Summary:            summary,
		OriginalTokens:     tokens.EstimateAll(messages),
		CompactedTokens:    tokens.EstimateAll(out),
		MessagesSummarized: len(toSummarize),
		History:            history,
		Duration:           time.Since(start),
	}

	c.logger.Info("compaction complete",
		"session_key", sessionKey,
		"original_tokens", result.OriginalTokens,
		"compacted_tokens", result.CompactedTokens,
		"messages_summarized", result.MessagesSummarized,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// Config returns the compactor's configuration.
func (c *Compactor) Config() *Config {
	return c.config
}
