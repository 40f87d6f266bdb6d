// ABOUTME: SQLite implementation of the Store interface using database/sql
// ABOUTME: Opens the single process-wide handle and brings the schema up to date

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

const defaultBusyTimeout = 5 * time.Second

// Options configures Open. The zero value is usable.
type Options struct {
	Driver      string
	BusyTimeout time.Duration
	Credentials CredentialScheme
	Logger      *slog.Logger
}

// SQLiteStore implements Store on a single SQLite file.
//
// All mutations take mu for writing and all reads take it for reading, so a
// check-then-insert or probe-then-alter never interleaves with another caller
// in the same process.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	driver      string
	mu          sync.RWMutex
	credentials CredentialScheme
	logger      *slog.Logger
	now         func() time.Time
}

// NewSQLiteStore opens the store at path with default options.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(path, Options{})
}

// Open opens (creating if needed) the database at path and runs EnsureSchema.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func Open(path string, opts Options) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrInvalidInput)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("%w: unknown sqlite driver %q", ErrInvalidInput, driver)
	}

	busyTimeout := opts.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	credentials := opts.Credentials
	if credentials == nil {
		credentials = PlaintextCredentials{}
	}

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w: %w", ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open(driver, dataSourceName(driver, path, busyTimeout, inMemory))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %w", ErrStoreUnavailable, err)
	}
	if inMemory {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w: %w", ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{
		db:          db,
		path:        path,
		driver:      driver,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	logger.Debug("SQLite store initialized", "path", path, "driver", driver, "credentials", credentials.Name())
	return s, nil
}

// dataSourceName builds a DSN that applies the connection pragmas to every
// pooled connection, not just the first one.
func dataSourceName(driver, path string, busyTimeout time.Duration, inMemory bool) string {
	ms := busyTimeout.Milliseconds()
	if driver == DriverCGO {
		dsn := fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=1", path, ms)
		if !inMemory {
			dsn += "&_journal_mode=WAL"
		}
		return dsn
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, ms)
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// Path returns the database file path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStore) Driver() string {
	return s.driver
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// unavailable tags a driver failure as ErrStoreUnavailable, keeping the cause.
func unavailable(action string, err error) error {
	return fmt.Errorf("%s: %w: %w", action, ErrStoreUnavailable, err)
}

// rollback undoes tx after a failure; the original error wins.
func (s *SQLiteStore) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("rollback failed", "error", err)
	}
}

// nullableString maps a nil or blank string to SQL NULL.
func nullableString(v *string) sql.NullString {
	if v == nil || strings.TrimSpace(*v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// stringPtr is the inverse of nullableString.
func stringPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
