package db

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestStore opens a migrated sqlite store in a per-test temp directory
// and closes it when the test ends.
func OpenTestStore(t testing.TB) Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schedule.db")
	conn, err := Open(context.Background(), DriverSqlite, path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	store := NewStore(conn)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
