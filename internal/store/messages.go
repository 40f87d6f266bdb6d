// ABOUTME: ConversationStore implementation on the messages table
// ABOUTME: Appends direct messages and reads symmetric, id-ordered conversations

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timestampLayout matches JavaScript's Date.toISOString once formatted in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Send appends a message from sender to receiver.
// At least one of text (non-blank) or imageURI must be present, otherwise
// ErrEmptyContent is returned and nothing is written. Both usernames must be
// registered accounts.
func (s *SQLiteStore) Send(ctx context.Context, sender, receiver string, text, imageURI *string) (*Message, error) {
	body := nullableString(text)
	image := nullableString(imageURI)
	if !body.Valid && !image.Valid {
		return nil, ErrEmptyContent
	}
	if isBlank(sender) || isBlank(receiver) {
		return nil, fmt.Errorf("%w: sender and receiver are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("beginning send", err)
	}
	defer s.rollback(tx)

	for _, username := range []string{sender, receiver} {
		ok, err := accountExists(ctx, tx, username)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
	}

	timestamp := s.now().UTC().Format(timestampLayout)

	// messages.message is NOT NULL in the base shape, so an image-only
	// message stores the empty string and reads back as nil.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (sender, receiver, message, image, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sender, receiver, body.String, image, timestamp,
	)
	if err != nil {
		return nil, unavailable("inserting message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("reading message id", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("committing message", err)
	}

	s.logger.Debug("sent message", "id", id, "sender", sender, "receiver", receiver, "has_image", image.Valid)

	return &Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Text:      stringPtr(body),
		Image:     stringPtr(image),
		Timestamp: timestamp,
	}, nil
}

// Conversation returns every message exchanged between userA and userB, in
// either direction, oldest first by id. The result is the same for (A, B)
// and (B, A) and is empty, not nil, when nothing has been sent.
func (s *SQLiteStore) Conversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, message, image, timestamp
		FROM messages
		WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		ORDER BY id ASC
	`, userA, userB, userB, userA)
	if err != nil {
		return nil, unavailable("querying conversation", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var m Message
		var body, image sql.NullString
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &body, &image, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Text = stringPtr(body)
		m.Image = stringPtr(image)
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating conversation", err)
	}

	return messages, nil
}

// ParseTimestamp parses a Message.Timestamp for display.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}
	return t, nil
}
