package testutil

import (
	"testing"

	"dedup-go/internal/database"
	"dedup-go/internal/dedup"
)

// NewTestDatabase returns an in-memory run-history database with every
// migration applied. It is closed when the test completes.
func NewTestDatabase(t *testing.T, clock dedup.Clock) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
