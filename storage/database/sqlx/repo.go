// Package sqlxrepos implements the repositories on Postgres and SQLite through sqlx.
// Queries are written with "?" placeholders and rebound for the driver in use.
package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fetc/proposals/core"
)

// inTx runs fn in a transaction, committed when fn succeeds.
func inTx(ctx context.Context, db core.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// in expands the slice arguments of query and rebinds it.
func in(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return exec.Rebind(q), args, nil
}

func isUniqueViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Code == "23505"
	case *sqlite.Error:
		return e.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || e.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
