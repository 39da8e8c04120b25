// Package transcript reads agent transcripts stored as JSON Lines and
// reports when they change.
//
// Each line is one record. The role and content live either at the top
// level or under "message", the layout agent CLIs write:
//
//	{"role":"user","content":"hi"}
//	{"type":"assistant","uuid":"…","timestamp":"…","message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}
//
// Records without a known role (summaries, metadata) are skipped, so message
// indices depend only on the conversational records. Transcripts are
// append-only; an index, once assigned, never changes.
package transcript

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youssefsiam38/agentctx/types"
)

// Extension is the file extension of transcript files.
const Extension = ".jsonl"

// Snapshot is a transcript as read at one point in time.
type Snapshot struct {
	Path     string
	Data     []byte
	Messages []*types.Message
}

// SessionKey derives the session key of a transcript from its file name.
func SessionKey(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// IsTranscript reports whether path names a transcript file.
func IsTranscript(path string) bool {
	return filepath.Ext(path) == Extension
}

// ReadFile reads and parses a transcript file.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return &Snapshot{Path: path, Data: data, Messages: Parse(data)}, nil
}

// Parse converts JSONL data into messages. Blank and malformed lines are
// skipped; a final line without a newline is used only if it is complete
// JSON, since a writer may still be appending it.
func Parse(data []byte) []*types.Message {
	var messages []*types.Message
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		if msg, ok := ParseRecord(line); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// ParseRecord converts one JSONL record into a message.
func ParseRecord(line []byte) (*types.Message, bool) {
	record := gjson.ParseBytes(line)
	if !record.IsObject() {
		return nil, false
	}

	body := record
	if nested := record.Get("message"); nested.IsObject() {
		body = nested
	}

	role, ok := parseRole(body.Get("role").String())
	if !ok {
		return nil, false
	}

	msg := &types.Message{
		ID:      firstString(record, "uuid", "id"),
		Role:    role,
		Content: parseContent(body.Get("content")),
	}
	if role == types.RoleToolResult && body.Get("content").Type == gjson.String {
		// OpenAI-style tool message: plain content answering tool_call_id.
		msg.Content = []types.ContentBlock{{
			Type:         types.ContentTypeToolResult,
			ToolResultID: body.Get("tool_call_id").String(),
			ToolContent:  body.Get("content").String(),
		}}
	}
	if ts := record.Get("timestamp"); ts.Exists() {
		msg.Timestamp = parseTimestamp(ts)
	}
	return msg, true
}

func parseRole(role string) (types.Role, bool) {
	switch strings.ToLower(role) {
	case "user", "human":
		return types.RoleUser, true
	case "assistant", "model":
		return types.RoleAssistant, true
	case "system":
		return types.RoleSystem, true
	case "tool", "tool_result":
		return types.RoleToolResult, true
	}
	return "", false
}

func parseContent(content gjson.Result) []types.ContentBlock {
	switch {
	case !content.Exists() || content.Type == gjson.Null:
		return nil
	case content.Type == gjson.String:
		return []types.ContentBlock{{Type: types.ContentTypeText, Text: content.String()}}
	case content.IsArray():
		var blocks []types.ContentBlock
		content.ForEach(func(_, item gjson.Result) bool {
			if block, ok := parseBlock(item); ok {
				blocks = append(blocks, block)
			}
			return true
		})
		return blocks
	default:
		return []types.ContentBlock{{Type: types.ContentTypeText, Text: content.Raw}}
	}
}

func parseBlock(item gjson.Result) (types.ContentBlock, bool) {
	if item.Type == gjson.String {
		return types.ContentBlock{Type: types.ContentTypeText, Text: item.String()}, true
	}

	switch kind := types.ContentType(item.Get("type").String()); kind {
	case types.ContentTypeText:
		return types.ContentBlock{Type: kind, Text: item.Get("text").String()}, true
	case types.ContentTypeThinking:
		return types.ContentBlock{Type: kind, Text: item.Get("thinking").String()}, true
	case types.ContentTypeToolUse:
		block := types.ContentBlock{
			Type:      kind,
			ToolUseID: item.Get("id").String(),
			ToolName:  item.Get("name").String(),
		}
		if input := item.Get("input"); input.Exists() {
			block.ToolInput = []byte(input.Raw)
		}
		return block, true
	case types.ContentTypeToolResult:
		return types.ContentBlock{
			Type:         kind,
			ToolResultID: item.Get("tool_use_id").String(),
			ToolContent:  toolResultText(item.Get("content")),
			IsError:      item.Get("is_error").Bool(),
		}, true
	case types.ContentTypeImage, types.ContentTypeDocument:
		return types.ContentBlock{Type: kind}, true
	}
	return types.ContentBlock{}, false
}

// toolResultText flattens tool-result content, which is either a string or
// an array of text blocks.
func toolResultText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var parts []string
	content.ForEach(func(_, item gjson.Result) bool {
		switch {
		case item.Type == gjson.String:
			parts = append(parts, item.String())
		case item.Get("type").String() == string(types.ContentTypeText):
			parts = append(parts, item.Get("text").String())
		case item.Get("type").Exists():
			parts = append(parts, "("+item.Get("type").String()+")")
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func parseTimestamp(ts gjson.Result) time.Time {
	if ts.Type == gjson.Number {
		return time.UnixMilli(ts.Int()).UTC()
	}
	t, err := time.Parse(time.RFC3339Nano, ts.String())
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstString(record gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := record.Get(path); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
