// ABOUTME: Tests for ConversationStore on SQLite
// ABOUTME: Covers empty-content rejection, symmetric id ordering, and the register/send/read scenario

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// setupPair returns a store with alice and bob registered.
func setupPair(t *testing.T) *SQLiteStore {
	t.Helper()
	store := setupTestStore(t, Options{})
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := store.Register(ctx, name, "pw")
		require.NoError(t, err)
	}
	return store
}

func countMessages(t *testing.T, store *SQLiteStore) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n))
	return n
}

func TestSend_Text(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	fixed := time.Date(2024, 3, 1, 9, 30, 15, 123456789, time.FixedZone("X", 3600))
	store.now = func() time.Time { return fixed }

	msg, err := store.Send(ctx, "alice", "bob", strPtr("hi"), nil)
	require.NoError(t, err)

	assert.Positive(t, msg.ID)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "bob", msg.Receiver)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "hi", *msg.Text)
	assert.Nil(t, msg.Image)
	assert.Equal(t, "2024-03-01T08:30:15.123Z", msg.Timestamp)

	parsed, err := ParseTimestamp(msg.Timestamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(fixed.Truncate(time.Millisecond)))
}

func TestSend_EmptyContent(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		text  *string
		image *string
	}{
		{"both nil", nil, nil},
		{"empty text", strPtr(""), nil},
		{"blank text", strPtr("   \n"), nil},
		{"blank text and blank image", strPtr(" "), strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Send(ctx, "alice", "bob", tt.text, tt.image)
			assert.ErrorIs(t, err, ErrEmptyContent)
		})
	}

	assert.Equal(t, 0, countMessages(t, store), "no row may be persisted")
}

func TestSend_UnknownAccount(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	_, err := store.Send(ctx, "alice", "carol", strPtr("hi"), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Send(ctx, "carol", "alice", strPtr("hi"), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, countMessages(t, store))
}

func TestSend_BlankParticipants(t *testing.T) {
	store := setupPair(t)

	_, err := store.Send(context.Background(), "", "bob", strPtr("hi"), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSend_IDsIncrease(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		msg, err := store.Send(ctx, "alice", "bob", strPtr("x"), nil)
		require.NoError(t, err)
		assert.Greater(t, msg.ID, last)
		last = msg.ID
	}
}

func TestConversation_Empty(t *testing.T) {
	store := setupPair(t)

	msgs, err := store.Conversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestConversation_Symmetric(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	_, err := store.Register(ctx, "carol", "pw")
	require.NoError(t, err)

	sends := []struct{ from, to, text string }{
		{"alice", "bob", "one"},
		{"bob", "alice", "two"},
		{"alice", "carol", "not in this conversation"},
		{"alice", "bob", "three"},
		{"carol", "bob", "also not"},
		{"bob", "alice", "four"},
	}
	for _, s := range sends {
		_, err := store.Send(ctx, s.from, s.to, strPtr(s.text), nil)
		require.NoError(t, err)
	}

	ab, err := store.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := store.Conversation(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	require.Len(t, ab, 4)

	var texts []string
	for _, m := range ab {
		texts = append(texts, *m.Text)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, texts)

	// Repeatable without intervening writes
	again, err := store.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, ab, again)
}

func TestConversation_OrderIgnoresTimestamp(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	// Each send gets an earlier timestamp than the previous one
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(-time.Hour)
		return clock
	}

	first, err := store.Send(ctx, "alice", "bob", strPtr("m1"), nil)
	require.NoError(t, err)
	second, err := store.Send(ctx, "bob", "alice", strPtr("m2"), nil)
	require.NoError(t, err)
	require.Greater(t, first.Timestamp, second.Timestamp)

	msgs, err := store.Conversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
}

func TestScenario_RegisterListSendRead(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	_, err := store.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	bob, err := store.Register(ctx, "bob", "pw2")
	require.NoError(t, err)

	others, err := store.ListOthers(ctx, "alice", OrderByID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, bob.ID, others[0].ID)
	assert.Equal(t, "bob", others[0].Username)

	_, err = store.Send(ctx, "alice", "bob", strPtr("hi"), nil)
	require.NoError(t, err)
	_, err = store.Send(ctx, "bob", "alice", nil, strPtr("file://img.jpg"))
	require.NoError(t, err)

	msgs, err := store.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "alice", msgs[0].Sender)
	require.NotNil(t, msgs[0].Text)
	assert.Equal(t, "hi", *msgs[0].Text)
	assert.Nil(t, msgs[0].Image)

	assert.Equal(t, "bob", msgs[1].Sender)
	assert.Nil(t, msgs[1].Text)
	require.NotNil(t, msgs[1].Image)
	assert.Equal(t, "file://img.jpg", *msgs[1].Image)
}

func TestSend_TextAndImage(t *testing.T) {
	store := setupPair(t)
	ctx := context.Background()

	_, err := store.Send(ctx, "alice", "bob", strPtr("look"), strPtr("file://cat.png"))
	require.NoError(t, err)

	msgs, err := store.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "look", *msgs[0].Text)
	assert.Equal(t, "file://cat.png", *msgs[0].Image)
}
