package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax for the underlying database.
type Dialect int

const (
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = iota

	// DialectPostgres uses $n placeholders.
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres":
		return DialectPostgres, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

// rebind rewrites ? placeholders for the dialect. Queries in this package
// never contain a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// schema is valid in both SQLite and PostgreSQL. created_at holds Unix
// nanoseconds; position keeps the generator's order inside one batch.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
    id TEXT PRIMARY KEY,
    session_key TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    message_start_index INTEGER NOT NULL,
    message_end_index INTEGER NOT NULL,
    token_estimate INTEGER NOT NULL,
    generation INTEGER NOT NULL,
    priority INTEGER NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    CHECK (message_start_index >= 0 AND message_end_index >= message_start_index),
    CHECK (generation >= 0),
    CHECK (priority BETWEEN 1 AND 3)
)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_session
    ON observations (session_key, generation, created_at)`,
}

// Migrate creates the observations table and index if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
