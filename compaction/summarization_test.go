package compaction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/types"
)

func TestAdaptiveChunkRatio(t *testing.T) {
	tests := []struct {
		name          string
		messages      []*types.Message
		contextWindow int
		want          float64
	}{
		{
			name:          "empty input keeps base",
			messages:      nil,
			contextWindow: 100000,
			want:          DefaultBaseChunkRatio,
		},
		{
			name:          "small messages keep base",
			messages:      testutil.Conversation(10, 400),
			contextWindow: 100000,
			want:          DefaultBaseChunkRatio,
		},
		{
			name:          "huge messages floor at minimum",
			messages:      testutil.Conversation(2, 200000),
			contextWindow: 100000,
			want:          DefaultMinChunkRatio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdaptiveChunkRatio(tt.messages, tt.contextWindow, DefaultBaseChunkRatio, DefaultMinChunkRatio)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAdaptiveChunkRatio_ShrinksProportionally(t *testing.T) {
	// ~12,504 tokens per message -> 15% of a 100K window with margin.
	messages := testutil.Conversation(4, 50000)

	got := AdaptiveChunkRatio(messages, 100000, DefaultBaseChunkRatio, DefaultMinChunkRatio)

	assert.Less(t, got, DefaultBaseChunkRatio)
	assert.GreaterOrEqual(t, got, DefaultMinChunkRatio)
}

func TestSummarizeInStages_EmptyInput(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	assert.Equal(t, DefaultSummaryFallback, p.SummarizeInStages(context.Background(), StageParams{}))
	assert.Equal(t, "earlier", p.SummarizeInStages(context.Background(), StageParams{PreviousSummary: "earlier"}))
	assert.Zero(t, summarizer.calls())
}

func TestSummarizeInStages_SmallInputSingleCall(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	got := p.SummarizeInStages(context.Background(), StageParams{
		Messages:        testutil.Conversation(6, 200),
		ContextWindow:   100000,
		PreviousSummary: "before",
		Model:           "haiku",
	})

	assert.Equal(t, "summary #0 of 6 messages", got)
	require.Equal(t, 1, summarizer.calls())
	assert.Equal(t, "before", summarizer.requests[0].PreviousSummary)
	assert.Equal(t, "haiku", summarizer.requests[0].Model)
}

func TestSummarizeInStages_SplitsAndMerges(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	messages := testutil.Conversation(8, 4000) // ~1,004 tokens each
	got := p.SummarizeInStages(context.Background(), StageParams{
		Messages:        messages,
		ContextWindow:   100000,
		MaxChunkTokens:  3000,
		Instructions:    "focus on files",
		PreviousSummary: "before",
	})

	// Two halves of four messages, each packed into two chunks, then a merge.
	require.Equal(t, 5, summarizer.calls())
	assert.Equal(t, "summary #4 of 2 messages", got)

	first := summarizer.requests[0]
	assert.Empty(t, first.PreviousSummary, "partial summaries start fresh")
	assert.Equal(t, "summary #0 of 2 messages", summarizer.requests[1].PreviousSummary)

	merge := summarizer.requests[4]
	assert.True(t, strings.HasPrefix(merge.Instructions, MergeSummariesInstructions))
	assert.Contains(t, merge.Instructions, "Additional focus:\nfocus on files")
	assert.Equal(t, "before", merge.PreviousSummary)
	assert.Equal(t, "summary #1 of 2 messages", merge.Messages[0].Text())
	assert.Equal(t, "summary #3 of 2 messages", merge.Messages[1].Text())
}

func TestSummarizeWithFallback_ThreadsSummaryAcrossChunks(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	p.SummarizeWithFallback(context.Background(), StageParams{
		Messages:       testutil.Conversation(3, 4000),
		ContextWindow:  100000,
		MaxChunkTokens: 1100,
	})

	require.Equal(t, 3, summarizer.calls())
	assert.Empty(t, summarizer.requests[0].PreviousSummary)
	assert.Equal(t, "summary #0 of 1 messages", summarizer.requests[1].PreviousSummary)
	assert.Equal(t, "summary #1 of 1 messages", summarizer.requests[2].PreviousSummary)
}

func TestSummarizeWithFallback_OversizedToolResult(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	huge := testutil.ToolResult("call-1", strings.Repeat("z", 200000))

	got := p.SummarizeInStages(context.Background(), StageParams{
		Messages:      []*types.Message{huge},
		ContextWindow: 100000,
	})

	assert.False(t, summarizer.sawMessage(huge), "oversized message must never reach the summarizer")
	assert.Contains(t, got, "[Large tool_result message (~50K tokens, 200,000 chars) omitted from summary]")
	assert.Contains(t, got, "Context contained 1 messages (1 oversized)")
}

func TestSummarizeWithFallback_RetriesWithoutOversized(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	small := testutil.User("please read the log")
	huge := testutil.ToolResult("call-1", strings.Repeat("z", 200000))
	reply := testutil.Assistant("the log is long")

	got := p.SummarizeWithFallback(context.Background(), StageParams{
		Messages:      []*types.Message{small, huge, reply},
		ContextWindow: 100000,
	})

	assert.False(t, summarizer.sawMessage(huge))
	assert.True(t, summarizer.sawMessage(small))
	assert.True(t, strings.HasPrefix(got, "summary #"))
	assert.Contains(t, got, "omitted from summary")
}

func TestSummarizeWithFallback_DeterministicWhenSummarizerFails(t *testing.T) {
	summarizer := &scriptedSummarizer{
		respond: func(int, SummarizeRequest) (string, error) { return "", errSummarizerDown },
	}
	p := NewPipeline(summarizer, nil)

	got := p.SummarizeWithFallback(context.Background(), StageParams{
		Messages:      testutil.Conversation(4, 100),
		ContextWindow: 100000,
	})

	assert.Equal(t, "Context contained 4 messages (0 oversized). Summary unavailable due to size limits.", got)
	assert.Equal(t, 2, summarizer.calls(), "one full attempt and one retry")
}

func TestSummarizeWithFallback_NilSummarizer(t *testing.T) {
	p := NewPipeline(nil, nil)

	got := p.SummarizeWithFallback(context.Background(), StageParams{
		Messages:      testutil.Conversation(2, 100),
		ContextWindow: 100000,
	})

	assert.Contains(t, got, "Summary unavailable")
}

func TestSummarizeWithFallback_CanceledContext(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	p := NewPipeline(summarizer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := p.SummarizeWithFallback(ctx, StageParams{
		Messages:      testutil.Conversation(2, 100),
		ContextWindow: 100000,
	})

	assert.Contains(t, got, "Summary unavailable")
	assert.Zero(t, summarizer.calls())
}

func TestIsOversized(t *testing.T) {
	assert.False(t, IsOversized(testutil.Sized(types.RoleUser, 100), 100000))
	assert.True(t, IsOversized(testutil.Sized(types.RoleUser, 200000), 100000))
}
