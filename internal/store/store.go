// ABOUTME: Store interfaces and data types for coven-chat persistence
// ABOUTME: Defines Account, Message, the error kinds, and the AccountStore/ConversationStore contracts

package store

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateUsername is returned when registering a username that is already taken.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidInput is returned when a required field is blank.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when an operation references a username that doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyContent is returned when a message has neither text nor an image.
	ErrEmptyContent = errors.New("message has no text and no image")

	// ErrInvalidCredentials is the single failure returned by Authenticate.
	// It deliberately does not say which of username or password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSchemaCorruption is returned when the schema cannot be inspected or
	// has a shape no migration knows how to handle.
	ErrSchemaCorruption = errors.New("schema corruption")

	// ErrSchemaTooNew is returned when the database was migrated by a newer build.
	ErrSchemaTooNew = errors.New("database schema is newer than this build")

	// ErrStoreUnavailable is returned when the database file cannot be opened or written.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Account is a registered user identity.
type Account struct {
	ID       int64
	Username string
	Password string  // stored credential; always cleared on accounts returned to callers
	Photo    *string // profile image URI, nil when unset
}

// Message is a single direct message between two accounts.
// ID is the only ordering key; Timestamp is informational.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Text      *string // nil for image-only messages
	Image     *string // attached image URI, nil when absent
	Timestamp string  // ISO-8601, UTC, millisecond precision
}

// AccountOrder selects the ordering of ListOthers results.
type AccountOrder int

const (
	// OrderByID returns accounts in registration order.
	OrderByID AccountOrder = iota
	// OrderByUsername returns accounts sorted by username.
	OrderByUsername
)

// AccountStore owns the users table.
type AccountStore interface {
	Register(ctx context.Context, username, password string) (*Account, error)
	Authenticate(ctx context.Context, username, password string) (*Account, error)
	ListOthers(ctx context.Context, excludingUsername string, order AccountOrder) ([]*Account, error)
	GetAccount(ctx context.Context, username string) (*Account, error)
	GetPhoto(ctx context.Context, username string) (*string, error)
	UpdatePhoto(ctx context.Context, username, uri string) (*Account, error)
}

// ConversationStore owns the messages table.
type ConversationStore interface {
	Send(ctx context.Context, sender, receiver string, text, imageURI *string) (*Message, error)
	Conversation(ctx context.Context, userA, userB string) ([]*Message, error)
}

// Store is everything the application shell needs from persistence.
type Store interface {
	AccountStore
	ConversationStore

	// Close releases any resources held by the store
	Close() error
}

// Ensure both implementations satisfy Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
