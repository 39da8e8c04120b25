package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// oversizedShare is the fraction of the context window above which a single
// message (with safety margin) is never sent to the summarizer.
const oversizedShare = 0.5

// adaptiveAvgShare is the average-message share of the context window above
// which chunks start shrinking.
const adaptiveAvgShare = 0.1

// SummarizeRequest is one call to the summarization collaborator.
type SummarizeRequest struct {
	Messages        []*types.Message
	Model           string
	ReserveTokens   int
	APIKey          string
	Instructions    string
	PreviousSummary string
}

// Summarizer turns messages into a summary. Implementations may fail; the
// pipeline recovers from every failure.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, req SummarizeRequest) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	return f(ctx, req)
}

// StageParams describes one summarization job.
type StageParams struct {
	Messages      []*types.Message
	ContextWindow int

	// MaxChunkTokens bounds each summarizer call. Zero derives it from
	// AdaptiveChunkRatio.
	MaxChunkTokens int

	Model           string
	ReserveTokens   int
	APIKey          string
	Instructions    string
	PreviousSummary string

	// Parts and MinMessagesForSplit control staged splitting.
	Parts               int
	MinMessagesForSplit int

	// BaseChunkRatio and MinChunkRatio override the package defaults when set.
	BaseChunkRatio float64
	MinChunkRatio  float64
}

// Pipeline produces summaries under a token budget using a Summarizer and a
// fallback ladder. Its methods never return an error.
type Pipeline struct {
	summarizer Summarizer
	logger     Logger
}

// NewPipeline creates a Pipeline. A nil summarizer makes every call fall
// through to the deterministic fallback.
func NewPipeline(summarizer Summarizer, logger Logger) *Pipeline {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pipeline{summarizer: summarizer, logger: logger}
}

// AdaptiveChunkRatio shrinks the base chunk ratio when the average message is
// large relative to the context window, so that a chunk still holds several
// messages.
func AdaptiveChunkRatio(messages []*types.Message, contextWindow int, base, floor float64) float64 {
	if len(messages) == 0 || contextWindow <= 0 {
		return base
	}

	avg := float64(tokens.EstimateAll(messages)) / float64(len(messages))
	avgRatio := avg * tokens.SafetyMargin / float64(contextWindow)
	if avgRatio <= adaptiveAvgShare {
		return base
	}

	reduction := min(avgRatio*2, base-floor)
	return max(floor, base-reduction)
}

// IsOversized reports whether msg alone would take more than half the context
// window once the safety margin is applied.
func IsOversized(msg *types.Message, contextWindow int) bool {
	return float64(tokens.WithMargin(tokens.Estimate(msg))) > float64(contextWindow)*oversizedShare
}

func (p *StageParams) applyDefaults() {
	if p.BaseChunkRatio == 0 {
		p.BaseChunkRatio = DefaultBaseChunkRatio
	}
	if p.MinChunkRatio == 0 {
		p.MinChunkRatio = DefaultMinChunkRatio
	}
	if p.ContextWindow <= 0 {
		p.ContextWindow = DefaultContextWindow
	}
	if p.Parts == 0 {
		p.Parts = DefaultParts
	}
	if p.MinMessagesForSplit == 0 {
		p.MinMessagesForSplit = DefaultMinMessagesForSplit
	}
	p.MinMessagesForSplit = max(2, p.MinMessagesForSplit)
	if p.MaxChunkTokens <= 0 {
		ratio := AdaptiveChunkRatio(p.Messages, p.ContextWindow, p.BaseChunkRatio, p.MinChunkRatio)
		p.MaxChunkTokens = max(1, int(float64(p.ContextWindow)*ratio))
	}
}

// SummarizeInStages summarizes params.Messages. Large inputs are split into
// balanced shares that are summarized independently and then merged.
func (p *Pipeline) SummarizeInStages(ctx context.Context, params StageParams) string {
	if len(params.Messages) == 0 {
		return previousOrFallback(params.PreviousSummary)
	}

	params.applyDefaults()

	parts := normalizeParts(params.Parts, len(params.Messages))
	total := tokens.EstimateAll(params.Messages)
	if parts <= 1 || len(params.Messages) < params.MinMessagesForSplit || total <= params.MaxChunkTokens {
		return p.SummarizeWithFallback(ctx, params)
	}

	splits := SplitByShare(params.Messages, parts)
	if len(splits) <= 1 {
		return p.SummarizeWithFallback(ctx, params)
	}

	p.logger.Debug("summarizing in stages",
		"messages", len(params.Messages),
		"tokens", total,
		"parts", len(splits),
		"max_chunk_tokens", params.MaxChunkTokens,
	)

	partials := make([]string, 0, len(splits))
	for _, chunk := range splits {
		stage := params
		stage.Messages = chunk
		stage.PreviousSummary = ""
		partials = append(partials, p.SummarizeWithFallback(ctx, stage))
	}

	summaryMessages := make([]*types.Message, len(partials))
	for i, partial := range partials {
		summaryMessages[i] = types.NewTextMessage(types.RoleUser, partial)
	}

	merge := params
	merge.Messages = summaryMessages
	merge.Instructions = mergeInstructions(params.Instructions)
	return p.SummarizeWithFallback(ctx, merge)
}

// SummarizeWithFallback summarizes params.Messages chunk by chunk. If that
// fails it retries without oversized messages, noting each omission, and
// finally returns a deterministic description that needs no summarizer.
func (p *Pipeline) SummarizeWithFallback(ctx context.Context, params StageParams) string {
	messages := params.Messages
	if len(messages) == 0 {
		return previousOrFallback(params.PreviousSummary)
	}
	params.applyDefaults()

	summary, err := p.summarizeChunks(ctx, params)
	if err == nil {
		return summary
	}
	p.logger.Warn("full summarization failed, retrying without oversized messages",
		"messages", len(messages),
		"error", err,
	)

	var normal []*types.Message
	var notes []string
	for _, msg := range messages {
		if IsOversized(msg, params.ContextWindow) {
			notes = append(notes, omissionNote(msg, tokens.Estimate(msg)))
			continue
		}
		normal = append(normal, msg)
	}

	if len(normal) > 0 && ctx.Err() == nil {
		partial := params
		partial.Messages = normal
		summary, err := p.summarizeChunks(ctx, partial)
		if err == nil {
			if len(notes) > 0 {
				summary += "\n\n" + strings.Join(notes, "\n")
			}
			return summary
		}
		p.logger.Warn("partial summarization failed, using fallback text",
			"messages", len(normal),
			"oversized", len(notes),
			"error", err,
		)
	}

	return unavailableSummary(len(messages), notes)
}

// summarizeChunks calls the summarizer once per chunk, sequentially, threading
// the running summary through each call.
func (p *Pipeline) summarizeChunks(ctx context.Context, params StageParams) (string, error) {
	if len(params.Messages) == 0 {
		return previousOrFallback(params.PreviousSummary), nil
	}
	if p.summarizer == nil {
		return "", ErrNoSummarizer
	}

	summary := params.PreviousSummary
	chunks := SplitByMaxTokens(params.Messages, params.MaxChunkTokens)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// Never hand the summarizer something it cannot possibly accept.
		if len(chunk) == 1 && IsOversized(chunk[0], params.ContextWindow) {
			return "", NewCompactionError("SummarizeChunk", fmt.Errorf("%w: message exceeds half the context window", ErrSummarizationFailed)).
				WithContext("chunk", i)
		}

		next, err := p.summarizer.Summarize(ctx, SummarizeRequest{
			Messages:        chunk,
			Model:           params.Model,
			ReserveTokens:   params.ReserveTokens,
			APIKey:          params.APIKey,
			Instructions:    params.Instructions,
			PreviousSummary: summary,
		})
		if err != nil {
			return "", NewCompactionError("SummarizeChunk", fmt.Errorf("%w: %w", ErrSummarizationFailed, err)).
				WithContext("chunk", i).
				WithContext("chunks", len(chunks))
		}
		summary = next
	}

	return previousOrFallback(summary), nil
}

func previousOrFallback(previous string) string {
	if previous != "" {
		return previous
	}
	return DefaultSummaryFallback
}
