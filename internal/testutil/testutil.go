// Package testutil provides test utilities for agentctx
package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/youssefsiam38/agentctx/types"
)

// NewPostgresDB opens a PostgreSQL connection from the DATABASE_URL env var.
// The test is skipped if DATABASE_URL is not set.
func NewPostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// CleanTables truncates the given tables for test isolation
func CleanTables(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// User builds a user text message.
func User(text string) *types.Message {
	return types.NewTextMessage(types.RoleUser, text)
}

// Assistant builds an assistant text message.
func Assistant(text string) *types.Message {
	return types.NewTextMessage(types.RoleAssistant, text)
}

// ToolCall builds an assistant message with a single tool_use block.
func ToolCall(id, name string, input map[string]any) *types.Message {
	raw, _ := json.Marshal(input)
	return &types.Message{
		Role: types.RoleAssistant,
		Content: []types.ContentBlock{
			{Type: types.ContentTypeToolUse, ToolUseID: id, ToolName: name, ToolInput: raw},
		},
		Timestamp: time.Now(),
	}
}

// ToolResult builds a tool_result message answering the call with the given ID.
func ToolResult(id, content string) *types.Message {
	return &types.Message{
		Role: types.RoleToolResult,
		Content: []types.ContentBlock{
			{Type: types.ContentTypeToolResult, ToolResultID: id, ToolContent: content},
		},
		Timestamp: time.Now(),
	}
}

// EmbeddedToolResult builds a user-role envelope carrying a tool result, the
// way Anthropic-style transcripts record them.
func EmbeddedToolResult(id, content string) *types.Message {
	msg := ToolResult(id, content)
	msg.Role = types.RoleUser
	return msg
}

// Sized builds a user text message whose content is n bytes long.
func Sized(role types.Role, n int) *types.Message {
	return types.NewTextMessage(role, strings.Repeat("x", n))
}

// Conversation builds n alternating user/assistant messages of size bytes each.
func Conversation(n, size int) []*types.Message {
	out := make([]*types.Message, n)
	for i := range out {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		out[i] = Sized(role, size)
	}
	return out
}
