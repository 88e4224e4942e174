// Package db provides sqlite persistence for the likevault archive.
package db

import (
	"context"
	"database/sql"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// Repository is the entry point for standalone reads and writes. Queries
// outside a transaction go through a prepared statement cache; WithTx hands
// out a Queries bound to the transaction instead.
type Repository struct {
	*Queries

	db *sql.DB

	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	r := &Repository{db: db}
	r.Queries = NewQueries(stmtQuerier{r})
	return r
}

// DB returns the underlying handle.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// WithTx runs fn in a transaction on the repository's database.
func (r *Repository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return WithTx(ctx, r.db, fn)
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to prepare statement")
	}

	// If another goroutine stored one first, close our duplicate.
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements. The database itself is owned
// by the caller.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.stmtCache.Delete(key)
		return true
	})
	return firstErr
}

// stmtQuerier adapts the statement cache to Querier.
type stmtQuerier struct {
	r *Repository
}

func (s stmtQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (s stmtQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	stmt, err := s.r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext falls back to the plain handle when preparing fails so the
// error surfaces from Scan like it does for *sql.DB.
func (s stmtQuerier) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	stmt, err := s.r.PrepareStmt(ctx, query)
	if err != nil {
		return s.r.db.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}
