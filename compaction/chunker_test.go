package compaction

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

func randomMessages(r *rand.Rand, n int) []*types.Message {
	out := make([]*types.Message, n)
	for i := range out {
		size := r.Intn(4000)
		if r.Intn(10) == 0 {
			size = 40000 + r.Intn(40000)
		}
		out[i] = testutil.Sized(types.RoleUser, size)
	}
	return out
}

func TestSplitByShare_Partitions(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		messages := randomMessages(r, 1+r.Intn(30))
		parts := 1 + r.Intn(8)

		chunks := SplitByShare(messages, parts)

		require.LessOrEqual(t, len(chunks), parts)
		require.Equal(t, messages, flatten(chunks), "chunks must concatenate back to the input")
		for _, chunk := range chunks {
			require.NotEmpty(t, chunk)
		}
	}
}

func TestSplitByShare_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		messages []*types.Message
		parts    int
		want     int
	}{
		{name: "empty input", messages: nil, parts: 3, want: 0},
		{name: "parts zero", messages: testutil.Conversation(5, 100), parts: 0, want: 1},
		{name: "parts one", messages: testutil.Conversation(5, 100), parts: 1, want: 1},
		{name: "parts clamped to length", messages: testutil.Conversation(3, 100), parts: 10, want: 3},
		{name: "even split", messages: testutil.Conversation(4, 100), parts: 2, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitByShare(tt.messages, tt.parts)
			assert.Len(t, chunks, tt.want)
			assert.Equal(t, tt.messages, flatten(chunks))
		})
	}
}

func TestSplitByShare_Balanced(t *testing.T) {
	messages := testutil.Conversation(8, 400)

	chunks := SplitByShare(messages, 2)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
}

func TestSplitByMaxTokens_RespectsLimit(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		messages := randomMessages(r, 1+r.Intn(40))
		maxTokens := 1 + r.Intn(12000)

		chunks := SplitByMaxTokens(messages, maxTokens)

		require.Equal(t, messages, flatten(chunks))
		for _, chunk := range chunks {
			require.NotEmpty(t, chunk)
			if len(chunk) == 1 {
				continue
			}
			assert.LessOrEqual(t, tokens.EstimateAll(chunk), maxTokens)
		}
	}
}

func TestSplitByMaxTokens_OversizedMessageIsolated(t *testing.T) {
	small1 := testutil.Sized(types.RoleUser, 40)
	huge := testutil.Sized(types.RoleToolResult, 40000)
	small2 := testutil.Sized(types.RoleAssistant, 40)

	chunks := SplitByMaxTokens([]*types.Message{small1, huge, small2}, 1000)

	require.Len(t, chunks, 3)
	assert.Equal(t, []*types.Message{huge}, chunks[1])
}

func TestSplitByMaxTokens_NonPositiveLimit(t *testing.T) {
	messages := testutil.Conversation(3, 10)

	chunks := SplitByMaxTokens(messages, 0)

	assert.Len(t, chunks, 3)
	assert.Nil(t, SplitByMaxTokens(nil, 100))
}
