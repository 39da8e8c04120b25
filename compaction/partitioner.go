package compaction

import (
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// Partitioner splits a transcript into the older part that gets summarized
// and the recent part that is kept verbatim.
type Partitioner struct {
	preserveLastN    int
	keepRecentTokens int
}

// NewPartitioner creates a new message partitioner
func NewPartitioner(preserveLastN, keepRecentTokens int) *Partitioner {
	return &Partitioner{
		preserveLastN:    preserveLastN,
		keepRecentTokens: keepRecentTokens,
	}
}

// Partition splits messages into toSummarize and kept sets.
func (p *Partitioner) Partition(messages []*types.Message) (toSummarize, kept []*types.Message) {
	// Always preserve last N messages
	if len(messages) <= p.preserveLastN {
		return nil, messages
	}

	protectedIdx := p.findProtectedIndex(messages)

	// Take the more conservative split
	splitIdx := max(0, min(len(messages)-p.preserveLastN, protectedIdx))

	// Never split in the middle of a tool call/result pair
	splitIdx = p.adjustForToolPairs(messages, splitIdx)

	return messages[:splitIdx], messages[splitIdx:]
}

// findProtectedIndex finds the index where the protected recent-token zone starts
func (p *Partitioner) findProtectedIndex(messages []*types.Message) int {
	tokensSeen := 0
	for i := len(messages) - 1; i >= 0; i-- {
		tokensSeen += tokens.Estimate(messages[i])
		if tokensSeen > p.keepRecentTokens {
			return i + 1
		}
	}
	return 0
}

// adjustForToolPairs moves the split point back until it no longer separates
// a tool_use from its tool_result.
func (p *Partitioner) adjustForToolPairs(messages []*types.Message, idx int) int {
	for idx > 0 && idx < len(messages) {
		if !hasBlock(messages[idx-1], types.ContentTypeToolUse) && !messages[idx].HasToolResults() {
			return idx
		}
		idx--
	}
	return idx
}

func hasBlock(msg *types.Message, kind types.ContentType) bool {
	for _, block := range msg.Content {
		if block.Type == kind {
			return true
		}
	}
	return false
}
