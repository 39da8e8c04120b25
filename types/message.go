package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleToolResult represents a message carrying tool output
	RoleToolResult Role = "tool_result"

	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// Message is one ordered transcript entry. The transcript owns it; this
// module only ever rewrites tool-result block contents, and only on copies.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// ContentType represents the type of content block
type ContentType string

const (
	// ContentTypeText represents text content
	ContentTypeText ContentType = "text"

	// ContentTypeToolUse represents a tool use block
	ContentTypeToolUse ContentType = "tool_use"

	// ContentTypeToolResult represents a tool result block
	ContentTypeToolResult ContentType = "tool_result"

	// ContentTypeThinking represents model reasoning
	ContentTypeThinking ContentType = "thinking"

	// ContentTypeImage represents an image block
	ContentTypeImage ContentType = "image"

	// ContentTypeDocument represents a document block
	ContentTypeDocument ContentType = "document"
)

// ContentBlock represents a piece of content in a message
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Tool use content
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// Tool result content
	ToolResultID string `json:"tool_use_id,omitempty"`
	ToolContent  string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:      role,
		Content:   []ContentBlock{{Type: ContentTypeText, Text: text}},
		Timestamp: time.Now(),
	}
}

// Text concatenates the text blocks of the message.
func (m *Message) Text() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == ContentTypeText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// IsUserTurn reports whether the message is real user input, as opposed to a
// user-role envelope that only carries tool results.
func (m *Message) IsUserTurn() bool {
	if m.Role != RoleUser {
		return false
	}
	if len(m.Content) == 0 {
		return true
	}
	for _, b := range m.Content {
		if b.Type != ContentTypeToolResult {
			return true
		}
	}
	return false
}

// HasToolResults reports whether any block is a tool result.
func (m *Message) HasToolResults() bool {
	for _, b := range m.Content {
		if b.Type == ContentTypeToolResult {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	msgCopy := *m
	msgCopy.Content = make([]ContentBlock, len(m.Content))
	for i, b := range m.Content {
		msgCopy.Content[i] = b
		if b.ToolInput != nil {
			msgCopy.Content[i].ToolInput = append(json.RawMessage(nil), b.ToolInput...)
		}
	}
	return &msgCopy
}
