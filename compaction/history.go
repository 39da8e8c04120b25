package compaction

import (
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// HistoryPruneResult is the audit trail of a history prune. Nothing is
// dropped without being listed here.
type HistoryPruneResult struct {
	// Messages are the surviving messages, in order.
	Messages []*types.Message

	// Dropped are the removed messages, oldest first.
	Dropped []*types.Message

	DroppedChunks   int
	DroppedMessages int
	DroppedTokens   int
	KeptTokens      int
	BudgetTokens    int

	// OrphanedToolResults counts tool_result blocks removed from kept
	// messages because their tool_use was dropped.
	OrphanedToolResults int
}

// PruneHistoryForContextShare drops whole chunks of the oldest history until
// the remainder fits in contextWindow*maxHistoryShare tokens. No
// summarization happens here; callers decide what to do with Dropped.
func PruneHistoryForContextShare(messages []*types.Message, contextWindow int, maxHistoryShare float64, parts int) *HistoryPruneResult {
	if maxHistoryShare <= 0 {
		maxHistoryShare = DefaultMaxHistoryShare
	}
	if parts <= 0 {
		parts = DefaultParts
	}

	result := &HistoryPruneResult{
		BudgetTokens: max(1, int(float64(contextWindow)*maxHistoryShare)),
	}

	kept := messages
	keptTokens := tokens.EstimateAll(kept)
	for len(kept) > 0 && keptTokens > result.BudgetTokens {
		chunks := SplitByShare(kept, max(2, parts))

		dropped := chunks[0]
		rest := kept[len(dropped):]
		if len(chunks) <= 1 {
			// Nothing left to split: the remainder alone is over budget.
			rest = nil
		}

		droppedTokens := tokens.EstimateAll(dropped)
		result.DroppedChunks++
		result.DroppedMessages += len(dropped)
		result.DroppedTokens += droppedTokens
		result.Dropped = append(result.Dropped, dropped...)

		kept = rest
		keptTokens -= droppedTokens
	}

	if len(result.Dropped) > 0 && len(kept) > 0 {
		var orphaned int
		kept, orphaned = repairToolPairing(kept, result.Dropped)
		result.OrphanedToolResults = orphaned
		if orphaned > 0 {
			keptTokens = tokens.EstimateAll(kept)
		}
	}

	result.Messages = kept
	result.KeptTokens = keptTokens
	return result
}

// repairToolPairing removes tool_result blocks whose tool_use lives in a
// dropped message. Messages that end up with no content are removed. Kept
// messages that need changes are copied, never mutated in place.
func repairToolPairing(kept, dropped []*types.Message) ([]*types.Message, int) {
	droppedCalls := make(map[string]struct{})
	for _, msg := range dropped {
		for _, block := range msg.Content {
			if block.Type == types.ContentTypeToolUse && block.ToolUseID != "" {
				droppedCalls[block.ToolUseID] = struct{}{}
			}
		}
	}
	if len(droppedCalls) == 0 {
		return kept, 0
	}

	orphaned := 0
	out := make([]*types.Message, 0, len(kept))
	for _, msg := range kept {
		if !msg.HasToolResults() {
			out = append(out, msg)
			continue
		}

		blocks := make([]types.ContentBlock, 0, len(msg.Content))
		for _, block := range msg.Content {
			if block.Type == types.ContentTypeToolResult {
				if _, gone := droppedCalls[block.ToolResultID]; gone {
					orphaned++
					continue
				}
			}
			blocks = append(blocks, block)
		}

		switch {
		case len(blocks) == len(msg.Content):
			out = append(out, msg)
		case len(blocks) > 0:
			repaired := msg.Clone()
			repaired.Content = blocks
			out = append(out, repaired)
		}
	}
	return out, orphaned
}
