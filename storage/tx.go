package storage

import (
	"context"
	"database/sql"
)

// txContextKey is the context key for storing *sql.Tx
type txContextKey struct{}

// WithTx returns a new context carrying tx. Store operations called with
// that context join tx instead of opening their own transaction; the caller
// commits or rolls back.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// querier is the common subset of *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// getQuerier returns the transaction from context if present, otherwise the db
func (s *SQLStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// inTx runs fn in a transaction. If ctx already carries one, fn joins it and
// the caller keeps ownership; otherwise a new transaction is committed when
// fn succeeds and rolled back on any error.
func (s *SQLStore) inTx(ctx context.Context, fn func(q querier) error) (err error) {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
