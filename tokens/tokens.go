// Package tokens estimates the model-input cost of transcript messages.
//
// Estimates are heuristic: roughly four characters per token plus a fixed
// overhead per message and per tool block. They run on every turn and at every
// chunk boundary, so they never call a tokenizer service. Callers compare
// estimates against hard limits only after applying SafetyMargin.
package tokens

import (
	"math"

	"github.com/youssefsiam38/agentctx/types"
)

const (
	// SafetyMargin is the multiplier applied to every estimate before it is
	// compared against a hard ceiling.
	SafetyMargin = 1.2

	// MessageOverhead approximates role and framing tokens per message.
	MessageOverhead = 4

	// ToolBlockOverhead approximates IDs and structure around tool blocks.
	ToolBlockOverhead = 10

	// MediaBlockTokens is a flat estimate for image and document blocks.
	MediaBlockTokens = 200
)

// Approximate estimates token count from character count.
// Uses ~4 characters per token with a minimum of 1 token for non-empty text.
func Approximate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// Estimate returns the approximate token cost of a single message.
func Estimate(msg *types.Message) int {
	if msg == nil {
		return 0
	}

	total := MessageOverhead
	for i := range msg.Content {
		total += EstimateBlock(&msg.Content[i])
	}
	return total
}

// EstimateBlock returns the approximate token cost of one content block.
func EstimateBlock(block *types.ContentBlock) int {
	switch block.Type {
	case types.ContentTypeText, types.ContentTypeThinking:
		return Approximate(block.Text)
	case types.ContentTypeToolUse:
		return Approximate(block.ToolName) + Approximate(string(block.ToolInput)) + ToolBlockOverhead
	case types.ContentTypeToolResult:
		return Approximate(block.ToolContent) + ToolBlockOverhead
	case types.ContentTypeImage, types.ContentTypeDocument:
		return MediaBlockTokens
	default:
		// Unknown type, estimate from available text
		return Approximate(block.Text)
	}
}

// EstimateAll sums Estimate over messages.
func EstimateAll(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += Estimate(msg)
	}
	return total
}

// WithMargin scales an estimate by SafetyMargin, rounding up.
func WithMargin(n int) int {
	return int(math.Ceil(float64(n)*SafetyMargin - 1e-9))
}
