// ABOUTME: Contract tests shared by every Store implementation
// ABOUTME: Runs the same behavioural checks against SQLiteStore and MockStore

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	impls := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return setupTestStore(t, Options{}) },
		"mock":   func(t *testing.T) Store { return NewMockStore() },
	}

	for name, newStore := range impls {
		t.Run(name, func(t *testing.T) {
			t.Run("duplicate registration", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				_, err := s.Register(ctx, "alice", "pw1")
				require.NoError(t, err)
				_, err = s.Register(ctx, "alice", "pw2")
				assert.ErrorIs(t, err, ErrDuplicateUsername)
			})

			t.Run("authentication", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				_, err := s.Register(ctx, "alice", "pw1")
				require.NoError(t, err)

				_, err = s.Authenticate(ctx, "alice", "wrong")
				assert.ErrorIs(t, err, ErrInvalidCredentials)

				got, err := s.Authenticate(ctx, "alice", "pw1")
				require.NoError(t, err)
				assert.Equal(t, "alice", got.Username)
				assert.Empty(t, got.Password)
			})

			t.Run("list excludes caller", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				for _, u := range []string{"alice", "bob"} {
					_, err := s.Register(ctx, u, "pw")
					require.NoError(t, err)
				}

				others, err := s.ListOthers(ctx, "alice", OrderByID)
				require.NoError(t, err)
				require.Len(t, others, 1)
				assert.Equal(t, "bob", others[0].Username)
			})

			t.Run("photo", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				_, err := s.Register(ctx, "alice", "pw")
				require.NoError(t, err)

				_, err = s.UpdatePhoto(ctx, "alice", "file://p.jpg")
				require.NoError(t, err)
				photo, err := s.GetPhoto(ctx, "alice")
				require.NoError(t, err)
				require.NotNil(t, photo)
				assert.Equal(t, "file://p.jpg", *photo)

				_, err = s.UpdatePhoto(ctx, "carol", "file://p.jpg")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("conversation", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				for _, u := range []string{"alice", "bob"} {
					_, err := s.Register(ctx, u, "pw")
					require.NoError(t, err)
				}

				_, err := s.Send(ctx, "alice", "bob", nil, nil)
				assert.ErrorIs(t, err, ErrEmptyContent)

				_, err = s.Send(ctx, "alice", "bob", strPtr("hi"), nil)
				require.NoError(t, err)
				_, err = s.Send(ctx, "bob", "alice", nil, strPtr("file://img.jpg"))
				require.NoError(t, err)

				ab, err := s.Conversation(ctx, "alice", "bob")
				require.NoError(t, err)
				ba, err := s.Conversation(ctx, "bob", "alice")
				require.NoError(t, err)
				assert.Equal(t, ab, ba)

				require.Len(t, ab, 2)
				assert.Equal(t, "hi", *ab[0].Text)
				assert.Nil(t, ab[1].Text)
				assert.Equal(t, "file://img.jpg", *ab[1].Image)
				assert.Less(t, ab[0].ID, ab[1].ID)
			})
		})
	}
}
