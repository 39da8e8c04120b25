package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/youssefsiam38/agentctx/types"
)

func TestApproximate(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
	}{
		{name: "empty string", content: "", expected: 0},
		{name: "short string", content: "hi", expected: 1},  // (2 + 3) / 4 = 1
		{name: "4 chars", content: "test", expected: 1},     // (4 + 3) / 4 = 1
		{name: "5 chars", content: "tests", expected: 2},    // (5 + 3) / 4 = 2
		{name: "8 chars", content: "12345678", expected: 2}, // (8 + 3) / 4 = 2
		{name: "1000 chars", content: strings.Repeat("x", 1000), expected: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Approximate(tt.content))
		})
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name     string
		message  *types.Message
		expected int
	}{
		{
			name:     "nil message",
			message:  nil,
			expected: 0,
		},
		{
			name:     "empty message is overhead only",
			message:  &types.Message{Role: types.RoleUser},
			expected: MessageOverhead,
		},
		{
			name:     "text message",
			message:  types.NewTextMessage(types.RoleUser, "12345678"),
			expected: MessageOverhead + 2,
		},
		{
			name: "tool use message",
			message: &types.Message{
				Role: types.RoleAssistant,
				Content: []types.ContentBlock{
					{Type: types.ContentTypeToolUse, ToolName: "read", ToolInput: []byte(`{"a":1}`)},
				},
			},
			expected: MessageOverhead + 1 + 2 + ToolBlockOverhead,
		},
		{
			name: "tool result message",
			message: &types.Message{
				Role: types.RoleToolResult,
				Content: []types.ContentBlock{
					{Type: types.ContentTypeToolResult, ToolContent: strings.Repeat("y", 400)},
				},
			},
			expected: MessageOverhead + 100 + ToolBlockOverhead,
		},
		{
			name: "image block",
			message: &types.Message{
				Role:    types.RoleUser,
				Content: []types.ContentBlock{{Type: types.ContentTypeImage}},
			},
			expected: MessageOverhead + MediaBlockTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Estimate(tt.message))
		})
	}
}

func TestEstimateAll(t *testing.T) {
	messages := []*types.Message{
		types.NewTextMessage(types.RoleUser, "Hello world"),    // 3 tokens
		types.NewTextMessage(types.RoleAssistant, "Hi there!"), // 3 tokens
	}
	assert.Equal(t, 2*MessageOverhead+6, EstimateAll(messages))
	assert.Equal(t, 0, EstimateAll(nil))
}

func TestWithMargin(t *testing.T) {
	assert.Equal(t, 0, WithMargin(0))
	assert.Equal(t, 120, WithMargin(100))
	assert.Equal(t, 2, WithMargin(1)) // 1.2 rounds up
}
