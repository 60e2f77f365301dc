// Package testutil provides a throwaway store for tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/db"
)

// NewTestDB opens a fresh in-memory SQLite database with the schema applied.
// Each call returns an isolated database that is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Connect(db.DriverSQLite, ":memory:?_foreign_keys=1&_busy_timeout=5000", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return conn
}
