// ABOUTME: Tests for opening the SQLite store
// ABOUTME: Covers file and directory creation, driver selection, DSN pragmas, and in-memory mode

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "users.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if store.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", store.Path(), dbPath)
	}
	if store.Driver() != DriverModernc {
		t.Errorf("Driver() = %q, want %q", store.Driver(), DriverModernc)
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "users.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created in the nested directory
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ", Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "users.db"), Options{Driver: "postgres"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpen_UnwritableDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing blocker file: %v", err)
	}

	_, err := Open(filepath.Join(blocker, "users.db"), Options{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	store, err := Open(":memory:", Options{})
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	others, err := store.ListOthers(ctx, "nobody", OrderByID)
	if err != nil {
		t.Fatalf("ListOthers failed: %v", err)
	}
	if len(others) != 1 {
		t.Errorf("expected 1 account, got %d", len(others))
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if _, err := store.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Authenticate(ctx, "alice", "pw1"); err != nil {
		t.Errorf("Authenticate after reopen failed: %v", err)
	}
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		inMemory bool
		contains []string
		excludes []string
	}{
		{
			name:     "modernc file",
			driver:   DriverModernc,
			contains: []string{"_pragma=busy_timeout(2500)", "_pragma=foreign_keys(1)", "_pragma=journal_mode(WAL)"},
		},
		{
			name:     "modernc memory",
			driver:   DriverModernc,
			inMemory: true,
			contains: []string{"_pragma=busy_timeout(2500)"},
			excludes: []string{"journal_mode"},
		},
		{
			name:     "cgo file",
			driver:   DriverCGO,
			contains: []string{"_busy_timeout=2500", "_foreign_keys=1", "_journal_mode=WAL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := dataSourceName(tt.driver, "users.db", 2500*time.Millisecond, tt.inMemory)
			if !strings.HasPrefix(dsn, "users.db?") {
				t.Errorf("dsn %q does not start with the path", dsn)
			}
			for _, want := range tt.contains {
				if !strings.Contains(dsn, want) {
					t.Errorf("dsn %q missing %q", dsn, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(dsn, unwanted) {
					t.Errorf("dsn %q should not contain %q", dsn, unwanted)
				}
			}
		})
	}
}

// newTestStore creates a SQLite store in a temporary directory.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "users.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
