package compaction

import (
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// normalizeParts clamps parts to [1, count].
func normalizeParts(parts, count int) int {
	if parts <= 1 || count <= 1 {
		return 1
	}
	return min(parts, count)
}

// SplitByShare partitions messages into at most parts contiguous chunks of
// roughly equal estimated token weight. The last chunk absorbs the remainder.
// Concatenating the chunks yields the input exactly.
func SplitByShare(messages []*types.Message, parts int) [][]*types.Message {
	if len(messages) == 0 {
		return nil
	}

	parts = normalizeParts(parts, len(messages))
	if parts <= 1 {
		return [][]*types.Message{messages}
	}

	target := float64(tokens.EstimateAll(messages)) / float64(parts)
	chunks := make([][]*types.Message, 0, parts)
	var current []*types.Message
	currentTokens := 0

	for _, msg := range messages {
		msgTokens := tokens.Estimate(msg)
		if len(chunks) < parts-1 && len(current) > 0 && float64(currentTokens+msgTokens) > target {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, msg)
		currentTokens += msgTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// SplitByMaxTokens greedily packs messages into chunks whose estimated weight
// stays within maxTokens. A message heavier than maxTokens on its own becomes
// a single-message chunk rather than being dropped.
func SplitByMaxTokens(messages []*types.Message, maxTokens int) [][]*types.Message {
	if len(messages) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = 1
	}

	var chunks [][]*types.Message
	var current []*types.Message
	currentTokens := 0

	for _, msg := range messages {
		msgTokens := tokens.Estimate(msg)
		if len(current) > 0 && currentTokens+msgTokens > maxTokens {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, msg)
		currentTokens += msgTokens

		if msgTokens > maxTokens {
			// Oversized: isolate it so it never drags neighbours over the limit.
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
