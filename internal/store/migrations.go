// ABOUTME: Versioned, additive schema migrations for the users and messages tables
// ABOUTME: Tracks the applied version in PRAGMA user_version; each step is idempotent

package store

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version     int
	description string
	up          func(ctx context.Context, tx *sql.Tx) error
}

// migrations only ever grow the schema. Never edit a released step; append a
// new one instead. Every step must also succeed against databases created
// before version tracking existed, which may already have some of its columns.
var migrations = []migration{
	{
		version:     1,
		description: "create base tables",
		up: func(ctx context.Context, tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username TEXT NOT NULL UNIQUE,
					password TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS messages (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					sender TEXT NOT NULL,
					receiver TEXT NOT NULL,
					message TEXT NOT NULL,
					timestamp TEXT NOT NULL
				)`,
			}
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return unavailable("creating base tables", err)
				}
			}
			return nil
		},
	},
	{
		version:     2,
		description: "add users.photo",
		up: func(ctx context.Context, tx *sql.Tx) error {
			return addColumnIfMissing(ctx, tx, "users", "photo", "TEXT")
		},
	},
	{
		version:     3,
		description: "add messages.image",
		up: func(ctx context.Context, tx *sql.Tx) error {
			return addColumnIfMissing(ctx, tx, "messages", "image", "TEXT")
		},
	},
	{
		version:     4,
		description: "index conversation lookups",
		up: func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver, id)`); err != nil {
				return unavailable("creating idx_messages_pair", err)
			}
			return nil
		},
	},
}

// CurrentSchemaVersion is the version a fully migrated database reports.
func CurrentSchemaVersion() int {
	latest := 0
	for _, m := range migrations {
		if m.version > latest {
			latest = m.version
		}
	}
	return latest
}

// EnsureSchema applies every migration newer than the database's recorded
// version. It is safe to call on every start and any number of times.
// Each migration commits together with its version bump, so an interrupted
// run resumes where it stopped.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := userVersion(ctx, s.db)
	if err != nil {
		return err
	}

	latest := CurrentSchemaVersion()
	if current > latest {
		return fmt.Errorf("%w: database=%d supported=%d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return unavailable(fmt.Sprintf("beginning migration v%d", m.version), err)
		}

		if err := m.up(ctx, tx); err != nil {
			s.rollback(tx)
			return fmt.Errorf("migration v%d (%s): %w", m.version, m.description, err)
		}

		// PRAGMA arguments cannot be bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			s.rollback(tx)
			return unavailable(fmt.Sprintf("recording schema version v%d", m.version), err)
		}

		if err := tx.Commit(); err != nil {
			return unavailable(fmt.Sprintf("committing migration v%d", m.version), err)
		}

		s.logger.Info("applied migration", "version", m.version, "description", m.description)
	}

	return nil
}

// SchemaVersion returns the migration version recorded in the database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return userVersion(ctx, s.db)
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("%w: reading schema version: %w", ErrSchemaCorruption, err)
	}
	return version, nil
}

// addColumnIfMissing adds a nullable column unless it is already present.
// Only a successful probe that reports the column absent leads to ALTER
// TABLE; a failed probe is reported as ErrSchemaCorruption.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE `+table+` ADD COLUMN `+column+` `+definition); err != nil {
		return unavailable(fmt.Sprintf("adding %s.%s", table, column), err)
	}
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("%w: probing %s.%s: %w", ErrSchemaCorruption, table, column, err)
	}
	defer rows.Close()

	columns := 0
	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("%w: probing %s.%s: %w", ErrSchemaCorruption, table, column, err)
		}
		columns++
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%w: probing %s.%s: %w", ErrSchemaCorruption, table, column, err)
	}

	// pragma_table_info yields no rows for a table that does not exist.
	if columns == 0 {
		return false, fmt.Errorf("%w: table %s does not exist", ErrSchemaCorruption, table)
	}
	return found, nil
}
