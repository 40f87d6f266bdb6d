// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite while keeping the same contracts

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	accounts    []*Account          // in registration order
	byUsername  map[string]*Account // keyed by username
	messages    []*Message          // in send order
	nextUserID  int64
	nextMsgID   int64
	credentials CredentialScheme
	now         func() time.Time
}

// NewMockStore creates a new MockStore using plaintext credentials.
func NewMockStore() *MockStore {
	return &MockStore{
		byUsername:  make(map[string]*Account),
		credentials: PlaintextCredentials{},
		now:         time.Now,
	}
}

// Register stores a new account.
func (m *MockStore) Register(ctx context.Context, username, password string) (*Account, error) {
	if isBlank(username) || isBlank(password) {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	encoded, err := m.credentials.Encode(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[username]; ok {
		return nil, ErrDuplicateUsername
	}

	m.nextUserID++
	a := &Account{ID: m.nextUserID, Username: username, Password: encoded}
	m.accounts = append(m.accounts, a)
	m.byUsername[username] = a

	return publicCopy(a), nil
}

// Authenticate checks username and password.
func (m *MockStore) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byUsername[username]
	if !ok || !m.credentials.Verify(a.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return publicCopy(a), nil
}

// ListOthers returns all accounts except excludingUsername.
func (m *MockStore) ListOthers(ctx context.Context, excludingUsername string, order AccountOrder) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Account{}
	for _, a := range m.accounts {
		if a.Username != excludingUsername {
			result = append(result, publicCopy(a))
		}
	}
	if order == OrderByUsername {
		sort.SliceStable(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	}
	return result, nil
}

// GetAccount returns the account for username.
func (m *MockStore) GetAccount(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return publicCopy(a), nil
}

// GetPhoto returns the photo for username.
func (m *MockStore) GetPhoto(ctx context.Context, username string) (*string, error) {
	a, err := m.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.Photo, nil
}

// UpdatePhoto sets the photo for username.
func (m *MockStore) UpdatePhoto(ctx context.Context, username, uri string) (*Account, error) {
	if isBlank(uri) {
		return nil, fmt.Errorf("%w: photo uri is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	photo := uri
	a.Photo = &photo
	return publicCopy(a), nil
}

// Send appends a message.
func (m *MockStore) Send(ctx context.Context, sender, receiver string, text, imageURI *string) (*Message, error) {
	body := stringPtr(nullableString(text))
	image := stringPtr(nullableString(imageURI))
	if body == nil && image == nil {
		return nil, ErrEmptyContent
	}
	if isBlank(sender) || isBlank(receiver) {
		return nil, fmt.Errorf("%w: sender and receiver are required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, username := range []string{sender, receiver} {
		if _, ok := m.byUsername[username]; !ok {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
	}

	m.nextMsgID++
	msg := &Message{
		ID:        m.nextMsgID,
		Sender:    sender,
		Receiver:  receiver,
		Text:      body,
		Image:     image,
		Timestamp: m.now().UTC().Format(timestampLayout),
	}
	m.messages = append(m.messages, msg)

	result := *msg
	return &result, nil
}

// Conversation returns messages between userA and userB in send order.
func (m *MockStore) Conversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Message{}
	for _, msg := range m.messages {
		if (msg.Sender == userA && msg.Receiver == userB) || (msg.Sender == userB && msg.Receiver == userA) {
			c := *msg
			result = append(result, &c)
		}
	}
	return result, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

// publicCopy returns a copy of a without its stored credential.
func publicCopy(a *Account) *Account {
	c := *a
	c.Password = ""
	if a.Photo != nil {
		photo := *a.Photo
		c.Photo = &photo
	}
	return &c
}
