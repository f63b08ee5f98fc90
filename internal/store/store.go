// Package store is the relational data layer. It owns every SQL statement in
// the service; queries are built with squirrel and executed over database/sql
// with the lib/pq driver.
//
// Dependency rule: store imports nothing from internal/. Handlers and the role
// resolver depend on it, never the other way round.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store holds the connection pool and a Postgres-flavoured statement builder.
// Operation files (accounts.go, contacts.go, …) attach methods to this type.
type Store struct {
	pool *sql.DB
	sb   sq.StatementBuilderType
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified before calling New.
func New(pool *sql.DB) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.PingContext(ctx)
}

// txFunc receives a transaction-scoped executor. Returning a non-nil error
// causes withTx to roll back.
type txFunc func(ctx context.Context, tx dbtx) error

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// ─── GENERIC HELPERS ─────────────────────────────────────────────────────────

// getOne runs a single-row query and scans it with scan.
func getOne[T any](ctx context.Context, q dbtx, b sq.Sqlizer, scan func(rowScanner) (T, error)) (T, error) {
	var zero T
	query, args, err := b.ToSql()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}
	v, err := scan(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return zero, mapError(err)
	}
	return v, nil
}

// getMany runs a multi-row query and scans every row with scan.
func getMany[T any](ctx context.Context, q dbtx, b sq.Sqlizer, scan func(rowScanner) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// count runs a SELECT count(*) query.
func count(ctx context.Context, q dbtx, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// exec runs a statement and returns ErrNotFound when it touched no rows.
func exec(ctx context.Context, q dbtx, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
