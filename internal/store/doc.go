// Package store provides persistent storage for coven-chat using SQLite.
//
// # Architecture
//
// Two interfaces split the data by owner:
//
//   - AccountStore: registration, authentication, contact listing, photos
//   - ConversationStore: sending messages and reading conversations
//
// Store combines both. SQLiteStore implements Store on a single database
// file; MockStore implements it in memory for tests of higher layers.
//
// # Data Models
//
//   - Account: username (unique, case-sensitive), stored credential, optional photo URI
//   - Message: sender, receiver, optional text, optional image URI, display timestamp
//
// Message IDs are assigned by SQLite AUTOINCREMENT and are the only ordering
// key. A conversation between A and B is every message from A to B or B to A,
// ordered by ID, and is identical whichever way round it is requested.
//
// # SQLite Configuration
//
// Every pooled connection is opened with:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=<Options.BusyTimeout>;
//
// Two drivers are supported: modernc.org/sqlite ("sqlite", pure Go, the
// default) and github.com/mattn/go-sqlite3 ("sqlite3", cgo).
//
// # Concurrency
//
// One SQLiteStore is opened per process and shared. Writes hold an exclusive
// lock and run in a transaction; reads hold a shared lock. Registration's
// uniqueness check and the migrations' column probes are therefore atomic
// with respect to every other caller.
//
// # Error Handling
//
// Failures are reported with sentinel errors, matched with errors.Is:
//
//   - ErrDuplicateUsername: username already registered
//   - ErrInvalidInput: a required field is blank
//   - ErrNotFound: the referenced username does not exist
//   - ErrEmptyContent: message with neither text nor image
//   - ErrInvalidCredentials: authentication failed
//   - ErrSchemaCorruption, ErrSchemaTooNew: the schema cannot be migrated
//   - ErrStoreUnavailable: the database could not be opened or written
//
// # Migrations
//
// Migrations live in migrations.go as an ordered list. The applied version is
// kept in PRAGMA user_version, so the database holds only the users and
// messages tables. Migrations only add tables, columns, and indexes, and each
// one tolerates databases that already have some of its changes.
package store
