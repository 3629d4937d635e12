package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/storage/database"
)

// OpenDB returns a migrated in-memory SQLite database, closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := &core.Config{Database: core.DatabaseConfig{Engine: database.SQLite, Path: ":memory:"}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}
