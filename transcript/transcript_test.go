package transcript

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefsiam38/agentctx/types"
)

const sample = `{"role":"user","content":"where is the config?"}
{"type":"assistant","uuid":"a1","timestamp":"2025-03-01T10:00:00Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"look in etc"},{"type":"tool_use","id":"t1","name":"read","input":{"path":"/etc/app.yaml"}}]}}
{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":[{"type":"text","text":"port: 8080"}],"is_error":false}]}}
{"type":"summary","summary":"not a message"}

this line is not json
{"role":"tool","tool_call_id":"t2","content":"exit 0"}
{"role":"assistant","content":"it listens on 8080"}
`

func TestParse(t *testing.T) {
	messages := Parse([]byte(sample))

	require.Len(t, messages, 5)

	assert.Equal(t, types.RoleUser, messages[0].Role)
	assert.Equal(t, "where is the config?", messages[0].Text())

	call := messages[1]
	assert.Equal(t, "a1", call.ID)
	assert.Equal(t, types.RoleAssistant, call.Role)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), call.Timestamp)
	require.Len(t, call.Content, 2)
	assert.Equal(t, types.ContentTypeThinking, call.Content[0].Type)
	assert.Equal(t, "look in etc", call.Content[0].Text)
	assert.Equal(t, "t1", call.Content[1].ToolUseID)
	assert.Equal(t, "read", call.Content[1].ToolName)
	assert.JSONEq(t, `{"path":"/etc/app.yaml"}`, string(call.Content[1].ToolInput))

	envelope := messages[2]
	assert.Equal(t, types.RoleUser, envelope.Role)
	assert.True(t, envelope.HasToolResults())
	assert.False(t, envelope.IsUserTurn())
	assert.Equal(t, "t1", envelope.Content[0].ToolResultID)
	assert.Equal(t, "port: 8080", envelope.Content[0].ToolContent)

	tool := messages[3]
	assert.Equal(t, types.RoleToolResult, tool.Role)
	assert.Equal(t, "t2", tool.Content[0].ToolResultID)
	assert.Equal(t, "exit 0", tool.Content[0].ToolContent)

	assert.Equal(t, "it listens on 8080", messages[4].Text())
}

func TestParse_PartialTrailingLine(t *testing.T) {
	data := []byte("{\"role\":\"user\",\"content\":\"one\"}\n{\"role\":\"assistant\",\"cont")

	messages := Parse(data)
	require.Len(t, messages, 1)

	// Once the writer finishes the line, indices of earlier messages hold.
	data = append(data, []byte("ent\":\"two\"}\n")...)
	messages = Parse(data)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Text())
	assert.Equal(t, "two", messages[1].Text())
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "abc-123", SessionKey("/tmp/projects/abc-123.jsonl"))
	assert.True(t, IsTranscript("x.jsonl"))
	assert.False(t, IsTranscript("x.json"))
}

func TestReadFileAndScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jsonl"), []byte(sample), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jsonl"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	paths, err := Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl")}, paths)

	snap, err := ReadFile(paths[1])
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 5)
	assert.Equal(t, []byte(sample), snap.Data)

	_, err = ReadFile(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(nil, dir)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 16)
	go w.Run(ctx, func(path string) { changed <- path })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600))
	target := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(target, []byte(sample), 0o600))

	select {
	case path := <-changed:
		assert.Equal(t, target, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
