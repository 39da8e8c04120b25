package compaction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// toolSession builds rounds of user question, tool call and a 5,010-token
// tool result, followed by a final user question.
func toolSession(rounds int, embedded bool) []*types.Message {
	var out []*types.Message
	for i := 0; i < rounds; i++ {
		id := fmt.Sprintf("call-%d", i)
		result := testutil.ToolResult(id, strings.Repeat("r", 20000))
		if embedded {
			result = testutil.EmbeddedToolResult(id, strings.Repeat("r", 20000))
		}
		out = append(out,
			testutil.User(fmt.Sprintf("question %d", i)),
			testutil.ToolCall(id, "read", map[string]any{"path": id}),
			result,
		)
	}
	return append(out, testutil.User("final question"))
}

func toolContents(messages []*types.Message) []string {
	var out []string
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Type == types.ContentTypeToolResult {
				out = append(out, block.ToolContent)
			}
		}
	}
	return out
}

func TestToolOutputPruner_NoopBelowMinSavings(t *testing.T) {
	messages := []*types.Message{
		testutil.User("hi"),
		testutil.ToolCall("a", "ls", nil),
		testutil.ToolResult("a", "file.txt"),
		testutil.User("thanks"),
	}

	result := NewToolOutputPruner(1, 0, 20000).Prune(messages)

	assert.Zero(t, result.PrunedBlocks)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, messages, result.Messages)
}

func TestToolOutputPruner_OldestFirstKeepsPreserveTokens(t *testing.T) {
	messages := toolSession(5, false)

	result := NewToolOutputPruner(1, 10000, 5000).Prune(messages)

	assert.Equal(t, 5, result.Candidates)
	assert.Equal(t, 5*5010, result.CandidateTokens)
	require.Equal(t, 3, result.PrunedBlocks)
	placeholder := tokens.Approximate(PrunedToolOutputPlaceholder) + tokens.ToolBlockOverhead
	assert.Equal(t, 3*(5010-placeholder), result.PrunedTokens)

	contents := toolContents(result.Messages)
	require.Len(t, contents, 5)
	for i := 0; i < 3; i++ {
		assert.Equal(t, PrunedToolOutputPlaceholder, contents[i])
	}
	for i := 3; i < 5; i++ {
		assert.Len(t, contents[i], 20000)
	}

	assert.GreaterOrEqual(t, result.CandidateTokens-3*5010, 10000)
}

func TestToolOutputPruner_InputUntouched(t *testing.T) {
	messages := toolSession(5, false)

	result := NewToolOutputPruner(1, 0, 0).Prune(messages)

	require.Equal(t, 5, result.PrunedBlocks)
	for _, content := range toolContents(messages) {
		assert.Len(t, content, 20000)
	}
	assert.NotSame(t, messages[2], result.Messages[2])
	assert.Same(t, messages[0], result.Messages[0], "unchanged messages are shared")
}

func TestToolOutputPruner_Idempotent(t *testing.T) {
	pruner := NewToolOutputPruner(1, 10000, 5000)

	first := pruner.Prune(toolSession(5, false))
	second := pruner.Prune(first.Messages)

	assert.Zero(t, second.PrunedBlocks)
	assert.Equal(t, toolContents(first.Messages), toolContents(second.Messages))
}

func TestToolOutputPruner_EmbeddedToolResults(t *testing.T) {
	messages := toolSession(3, true)

	// Embedded results are user-role envelopes but do not count as turns.
	result := NewToolOutputPruner(1, 0, 0).Prune(messages)

	assert.Equal(t, 3, result.PrunedBlocks)
	for _, content := range toolContents(result.Messages) {
		assert.Equal(t, PrunedToolOutputPlaceholder, content)
	}
}

func TestToolOutputPruner_ProtectedTurns(t *testing.T) {
	messages := toolSession(3, false)
	messages = messages[:len(messages)-1] // last turn is "question 2" with its tool result

	result := NewToolOutputPruner(1, 0, 0).Prune(messages)

	contents := toolContents(result.Messages)
	require.Len(t, contents, 3)
	assert.Equal(t, PrunedToolOutputPlaceholder, contents[0])
	assert.Equal(t, PrunedToolOutputPlaceholder, contents[1])
	assert.Len(t, contents[2], 20000, "results inside the protected turns are kept")
}

func TestToolOutputPruner_BoundaryCases(t *testing.T) {
	tests := []struct {
		name          string
		preserveTurns int
		wantPruned    int
	}{
		{name: "zero turns protects nothing", preserveTurns: 0, wantPruned: 3},
		{name: "more turns than exist", preserveTurns: 10, wantPruned: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := toolSession(3, false)

			result := NewToolOutputPruner(tt.preserveTurns, 0, 0).Prune(messages)

			assert.Equal(t, tt.wantPruned, result.PrunedBlocks)
		})
	}
}
