package compaction

import (
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// PrunedToolOutputPlaceholder replaces tool output content removed by the
// ToolOutputPruner.
const PrunedToolOutputPlaceholder = "[Old tool result content cleared]"

// PruneResult describes one tool-output pruning pass.
type PruneResult struct {
	// Messages is a new slice; pruned messages are copies.
	Messages []*types.Message

	// Candidates is the number of unpruned tool results outside the
	// protected turns.
	Candidates int

	// CandidateTokens is their estimated total.
	CandidateTokens int

	// PrunedBlocks and PrunedTokens describe what was replaced.
	PrunedBlocks int
	PrunedTokens int
}

// ToolOutputPruner replaces old tool results with a placeholder. It makes no
// collaborator calls.
type ToolOutputPruner struct {
	preserveTurns  int
	preserveTokens int
	minSavings     int
}

// NewToolOutputPruner creates a pruner. Negative values are treated as zero.
func NewToolOutputPruner(preserveTurns, preserveTokens, minSavings int) *ToolOutputPruner {
	return &ToolOutputPruner{
		preserveTurns:  max(0, preserveTurns),
		preserveTokens: max(0, preserveTokens),
		minSavings:     max(0, minSavings),
	}
}

type toolResultRef struct {
	msg    int
	block  int
	tokens int
}

// Prune keeps the most recent preserveTurns user turns intact and, if enough
// can be saved, clears earlier tool results oldest-first while keeping at
// least preserveTokens of tool output. The input slice and its messages are
// never modified.
func (p *ToolOutputPruner) Prune(messages []*types.Message) *PruneResult {
	result := &PruneResult{
		Messages: append([]*types.Message(nil), messages...),
	}

	boundary := p.protectedBoundary(messages)
	if boundary == 0 {
		return result
	}

	var refs []toolResultRef
	for i := 0; i < boundary; i++ {
		for j := range messages[i].Content {
			block := &messages[i].Content[j]
			if block.Type != types.ContentTypeToolResult || block.ToolContent == PrunedToolOutputPlaceholder {
				continue
			}
			cost := tokens.EstimateBlock(block)
			refs = append(refs, toolResultRef{msg: i, block: j, tokens: cost})
			result.CandidateTokens += cost
		}
	}
	result.Candidates = len(refs)

	if result.CandidateTokens-p.preserveTokens < p.minSavings {
		return result
	}

	retained := result.CandidateTokens
	copied := make(map[int]bool)
	for _, ref := range refs {
		if retained-ref.tokens < p.preserveTokens {
			break
		}

		if !copied[ref.msg] {
			result.Messages[ref.msg] = messages[ref.msg].Clone()
			copied[ref.msg] = true
		}
		block := &result.Messages[ref.msg].Content[ref.block]
		block.ToolContent = PrunedToolOutputPlaceholder
		block.IsError = false

		retained -= ref.tokens
		result.PrunedBlocks++
		result.PrunedTokens += ref.tokens - tokens.EstimateBlock(block)
	}

	return result
}

// protectedBoundary returns the index of the preserveTurns-th most recent
// user turn. Messages from that index on are never pruned. Zero means
// everything is protected.
func (p *ToolOutputPruner) protectedBoundary(messages []*types.Message) int {
	if p.preserveTurns == 0 {
		return len(messages)
	}

	seen := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsUserTurn() {
			seen++
			if seen == p.preserveTurns {
				return i
			}
		}
	}
	return 0
}
