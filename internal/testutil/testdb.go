package testutil

import (
	"database/sql"
	"testing"

	"github.com/alexanderramin/shopfloor/internal/db"
)

// NewTestDB opens a migrated in-memory shop floor database that is closed
// when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
