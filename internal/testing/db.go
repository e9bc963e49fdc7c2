// Package testing provides testing utilities and helpers for the tradeledger project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/database"
)

// NewTestDB creates a file-backed SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection.
//
// Supported schema names:
//   - "ledger" - applies ledger_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()
	return NewTestDBWithBusyTimeout(t, name, database.DefaultBusyTimeout)
}

// NewTestDBWithBusyTimeout is NewTestDB with a custom SQLite busy timeout,
// for tests that provoke lock contention.
func NewTestDBWithBusyTimeout(t *testing.T, name string, busyTimeout time.Duration) (*database.DB, func()) {
	t.Helper()

	// File-backed so every pooled connection sees the same database
	tmpPath := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	db, err := database.New(database.Config{
		Path:        tmpPath,
		Profile:     database.ProfileLedger,
		Name:        name,
		BusyTimeout: busyTimeout,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}

// OpenSecondHandle opens another pool on the same file, standing in for a
// second process sharing the ledger.
func OpenSecondHandle(t *testing.T, db *database.DB, busyTimeout time.Duration) *database.DB {
	t.Helper()

	other, err := database.New(database.Config{
		Path:        db.Path(),
		Profile:     database.ProfileLedger,
		Name:        db.Name(),
		BusyTimeout: busyTimeout,
	})
	if err != nil {
		t.Fatalf("Failed to open second handle on %s: %v", db.Path(), err)
	}
	t.Cleanup(func() { _ = other.Close() })
	return other
}
