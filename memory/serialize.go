package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/youssefsiam38/agentctx/types"
)

// DefaultToolResultMaxChars caps serialized tool-result content.
const DefaultToolResultMaxChars = 2000

// SerializeMessages renders messages as role-labeled plain text for the
// Observer, one "[role]: ..." entry per message. Tool results longer than
// maxToolChars are truncated with a marker; maxToolChars <= 0 uses
// DefaultToolResultMaxChars.
func SerializeMessages(messages []*types.Message, maxToolChars int) string {
	if maxToolChars <= 0 {
		maxToolChars = DefaultToolResultMaxChars
	}

	entries := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		parts := make([]string, 0, len(msg.Content))
		for _, block := range msg.Content {
			if part := serializeBlock(block, maxToolChars); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}
		entries = append(entries, fmt.Sprintf("[%s]: %s", msg.Role, strings.Join(parts, "\n")))
	}
	return strings.Join(entries, "\n\n")
}

func serializeBlock(block types.ContentBlock, maxToolChars int) string {
	switch block.Type {
	case types.ContentTypeText:
		return block.Text
	case types.ContentTypeToolUse:
		if len(block.ToolInput) == 0 {
			return fmt.Sprintf("(tool call %s)", block.ToolName)
		}
		return fmt.Sprintf("(tool call %s) %s", block.ToolName, truncate(string(block.ToolInput), maxToolChars))
	case types.ContentTypeToolResult:
		label := "(tool result)"
		if block.IsError {
			label = "(tool error)"
		}
		return label + " " + truncate(block.ToolContent, maxToolChars)
	case types.ContentTypeImage, types.ContentTypeDocument:
		return "(" + string(block.Type) + ")"
	default:
		// Thinking blocks stay out of observations.
		return ""
	}
}

// truncate cuts s to at most limit bytes on a rune boundary and notes how
// much was removed.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s… [truncated %d chars]", s[:cut], len(s)-cut)
}
