package db

import (
	"context"
	"database/sql"
	"errors"

	pkgerrors "github.com/pkg/errors"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// otherwise. fn must do all of its reads and writes through q.
func WithTx(ctx context.Context, db *sql.DB, fn func(q *Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(NewQueries(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(err, "commit transaction")
	}
	return nil
}

// IsConstraint reports whether err is a SQLite constraint violation.
func IsConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// wrapErr classifies a driver error. Constraint violations that survived
// upsert semantics mean the model is wrong and surface as storage integrity
// failures; anything else is a generic database error.
func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.ErrNotFound, op, err)
	}
	if IsConstraint(err) {
		return apperrors.Wrap(apperrors.ErrStorageIntegrity, op, err)
	}
	return apperrors.Wrap(apperrors.ErrDatabase, op, pkgerrors.WithStack(err))
}
