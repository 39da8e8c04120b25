// Package storage persists observations in a SQL database: embedded SQLite
// by default, PostgreSQL for shared deployments.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/youssefsiam38/agentctx/memory"
)

// SQLStore implements memory.Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	closers []func() error
}

var _ memory.Store = (*SQLStore)(nil)

// OpenSQLite opens an embedded SQLite store. Use ":memory:" for a private
// in-memory database or a file path for persistent storage.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// SQLite writers.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, dialect: DialectSQLite, closers: []func() error{db.Close}}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL through a pgx connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	s := &SQLStore{
		db:      db,
		dialect: DialectPostgres,
		closers: []func() error{db.Close, func() error { pool.Close(); return nil }},
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a store through any registered database/sql driver with a known
// dialect: "sqlite3", "pgx" or "postgres" (lib/pq).
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite3" || driver == "sqlite" {
		return OpenSQLite(ctx, dsn)
	}

	dialect, err := DialectForDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialect, closers: []func() error{db.Close}}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps a caller-owned database. The schema is created if missing; Close
// leaves db open.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's SQL dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close releases the connections the store opened.
func (s *SQLStore) Close() error {
	var errs []error
	for _, closer := range s.closers {
		errs = append(errs, closer())
	}
	s.closers = nil
	return errors.Join(errs...)
}

const insertObservation = `
	INSERT INTO observations (id, session_key, content, created_at, message_start_index,
	                          message_end_index, token_estimate, generation, priority, position)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectObservations = `
	SELECT id, session_key, content, created_at, message_start_index,
	       message_end_index, token_estimate, generation, priority
	FROM observations
`

// Insert stores rows in one transaction. Raw rows must start at or after the
// session's high-water mark; rows of one batch may share the same range.
func (s *SQLStore) Insert(ctx context.Context, rows ...*memory.Observation) error {
	if len(rows) == 0 {
		return nil
	}

	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return newStoreError("Insert", row.SessionKey, err)
		}
	}

	err := s.inTx(ctx, func(q querier) error {
		marks := make(map[string]int)
		var prev *memory.Observation

		for _, row := range rows {
			if row.Generation() != 0 {
				continue
			}

			mark, ok := marks[row.SessionKey]
			if !ok {
				var err error
				if mark, err = s.highWaterMark(ctx, q, row.SessionKey); err != nil {
					return err
				}
			}

			sameRange := prev != nil &&
				prev.SessionKey == row.SessionKey &&
				prev.MessageStartIndex == row.MessageStartIndex &&
				prev.MessageEndIndex == row.MessageEndIndex
			if row.MessageStartIndex < mark && !sameRange {
				return newStoreError("Insert", row.SessionKey, fmt.Errorf("%w: [%d,%d) starts before high-water mark %d",
					memory.ErrRangeOverlap, row.MessageStartIndex, row.MessageEndIndex, mark))
			}

			marks[row.SessionKey] = max(mark, row.MessageEndIndex)
			prev = row
		}

		return s.insertRows(ctx, q, rows)
	})
	if err != nil {
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			return err
		}
		return newStoreError("Insert", rows[0].SessionKey, err)
	}
	return nil
}

func (s *SQLStore) insertRows(ctx context.Context, q querier, rows []*memory.Observation) error {
	stmt, err := q.PrepareContext(ctx, s.dialect.rebind(insertObservation))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		createdAt := row.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err := stmt.ExecContext(ctx,
			row.ID,
			row.SessionKey,
			row.Content,
			createdAt.UnixNano(),
			row.MessageStartIndex,
			row.MessageEndIndex,
			row.TokenEstimate,
			row.Generation(),
			int(row.Priority),
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation %s: %w", row.ID, err)
		}
	}
	return nil
}

// List returns a session's rows ordered by generation, then most recent
// first. A nil generation lists every generation.
func (s *SQLStore) List(ctx context.Context, sessionKey string, generation *int) ([]*memory.Observation, error) {
	query := selectObservations + ` WHERE session_key = ?`
	args := []any{sessionKey}
	if generation != nil {
		query += ` AND generation = ?`
		args = append(args, *generation)
	}
	query += ` ORDER BY generation ASC, created_at DESC, position ASC`

	rows, err := s.getQuerier(ctx).QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, newStoreError("List", sessionKey, err)
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, newStoreError("List", sessionKey, err)
	}
	return observations, nil
}

func scanObservations(rows *sql.Rows) ([]*memory.Observation, error) {
	var out []*memory.Observation
	for rows.Next() {
		var (
			obs        memory.Observation
			createdAt  int64
			generation int
			priority   int
		)
		if err := rows.Scan(
			&obs.ID,
			&obs.SessionKey,
			&obs.Content,
			&createdAt,
			&obs.MessageStartIndex,
			&obs.MessageEndIndex,
			&obs.TokenEstimate,
			&generation,
			&priority,
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		origin, err := memory.OriginForGeneration(generation)
		if err != nil {
			return nil, err
		}
		obs.Origin = origin
		obs.Priority = memory.Priority(priority)
		obs.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, &obs)
	}
	return out, rows.Err()
}

// HighWaterMark returns the end of the last observed message range, 0 if the
// session has no observations. Reflected rows carry the span of the rows they
// replaced, so the mark survives reflection.
func (s *SQLStore) HighWaterMark(ctx context.Context, sessionKey string) (int, error) {
	mark, err := s.highWaterMark(ctx, s.getQuerier(ctx), sessionKey)
	if err != nil {
		return 0, newStoreError("HighWaterMark", sessionKey, err)
	}
	return mark, nil
}

func (s *SQLStore) highWaterMark(ctx context.Context, q querier, sessionKey string) (int, error) {
	var mark int64
	err := q.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT COALESCE(MAX(message_end_index), 0) FROM observations WHERE session_key = ?`),
		sessionKey,
	).Scan(&mark)
	if err != nil {
		return 0, fmt.Errorf("failed to read high-water mark: %w", err)
	}
	return int(mark), nil
}

// TokenSum totals the token estimates of a session, optionally for one generation.
func (s *SQLStore) TokenSum(ctx context.Context, sessionKey string, generation *int) (int, error) {
	query := `SELECT COALESCE(SUM(token_estimate), 0) FROM observations WHERE session_key = ?`
	args := []any{sessionKey}
	if generation != nil {
		query += ` AND generation = ?`
		args = append(args, *generation)
	}

	var sum int64
	if err := s.getQuerier(ctx).QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&sum); err != nil {
		return 0, newStoreError("TokenSum", sessionKey, err)
	}
	return int(sum), nil
}

// ReplaceGeneration deletes every row of generation and inserts rows in one
// transaction. Any failure rolls back, leaving the generation untouched.
func (s *SQLStore) ReplaceGeneration(ctx context.Context, sessionKey string, generation int, rows []*memory.Observation) error {
	if generation < 0 {
		return newStoreError("ReplaceGeneration", sessionKey,
			fmt.Errorf("%w: negative generation %d", memory.ErrInvalidObservation, generation))
	}
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return newStoreError("ReplaceGeneration", sessionKey, err)
		}
		if row.SessionKey != sessionKey {
			return newStoreError("ReplaceGeneration", sessionKey,
				fmt.Errorf("%w: row %s belongs to session %s", memory.ErrInvalidObservation, row.ID, row.SessionKey))
		}
		if row.Generation() <= generation {
			return newStoreError("ReplaceGeneration", sessionKey,
				fmt.Errorf("%w: replacement row %s has generation %d, want > %d",
					memory.ErrInvalidObservation, row.ID, row.Generation(), generation))
		}
	}

	err := s.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			s.dialect.rebind(`DELETE FROM observations WHERE session_key = ? AND generation = ?`),
			sessionKey, generation,
		); err != nil {
			return fmt.Errorf("failed to delete generation: %w", err)
		}
		return s.insertRows(ctx, q, rows)
	})
	if err != nil {
		return newStoreError("ReplaceGeneration", sessionKey, err).WithContext("generation", generation)
	}
	return nil
}

// DeleteSession removes every observation of a session.
func (s *SQLStore) DeleteSession(ctx context.Context, sessionKey string) error {
	_, err := s.getQuerier(ctx).ExecContext(ctx,
		s.dialect.rebind(`DELETE FROM observations WHERE session_key = ?`),
		sessionKey,
	)
	if err != nil {
		return newStoreError("DeleteSession", sessionKey, err)
	}
	return nil
}
