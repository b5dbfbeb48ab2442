package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobmae/soulchat/memory"
	"github.com/tobmae/soulchat/session"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "soulchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	sess, err := store.CreateSession(ctx, "Trip planning")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", got.Title)
	assert.Zero(t, got.TotalInputTokens)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, store.DeleteSession(ctx, sess.ID))
	_, err = store.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMessagesOrderedAndCascadeDeleted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSessionStore(db)

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := store.AppendMessage(ctx, session.Message{
			SessionID: sess.ID,
			Role:      "user",
			Content:   content,
		})
		require.NoError(t, err)
	}

	messages, err := store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "third", messages[2].Content)

	require.NoError(t, store.DeleteSession(ctx, sess.ID))
	messages, err = store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAddUsageAccumulates(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	require.NoError(t, store.AddUsage(ctx, sess.ID, 100, 50, 0.01))
	require.NoError(t, store.AddUsage(ctx, sess.ID, 20, 10, 0.002))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.TotalInputTokens)
	assert.Equal(t, int64(60), got.TotalOutputTokens)
	assert.InDelta(t, 0.012, got.TotalCostUsd, 1e-9)

	assert.ErrorIs(t, store.AddUsage(ctx, "missing", 1, 1, 0), session.ErrNotFound)
}

func TestAddUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AddUsage(ctx, sess.ID, 1, 2, 0.001))
		}()
	}
	wg.Wait()

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.TotalInputTokens)
	assert.Equal(t, int64(2*n), got.TotalOutputTokens)
	assert.InDelta(t, 0.001*n, got.TotalCostUsd, 1e-9)
}

func TestMemorySaveListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(openTestDB(t))

	id, err := store.Save(ctx, memory.TypePersistent, "user's name is Ada", []string{"identity"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = store.Save(ctx, memory.TypeSession, "talking about orchids", nil)
	require.NoError(t, err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"identity"}, all[0].Tags)
	assert.Equal(t, []string{}, all[1].Tags)

	persistent, err := store.List(ctx, memory.TypePersistent)
	require.NoError(t, err)
	require.Len(t, persistent, 1)
	assert.Equal(t, "user's name is Ada", persistent[0].Content)

	require.NoError(t, store.Delete(ctx, id))
	all, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Deleting an absent id succeeds.
	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestMemorySearchRanksAndLimits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(openTestDB(t))

	_, err := store.Save(ctx, memory.TypePersistent, "orchid orchid orchid", nil)
	require.NoError(t, err)
	_, err = store.Save(ctx, memory.TypePersistent, "one orchid mention", nil)
	require.NoError(t, err)
	_, err = store.Save(ctx, memory.TypePersistent, "nothing relevant", nil)
	require.NoError(t, err)

	results, err := store.Search(ctx, "orchid", "", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "orchid orchid orchid", results[0].Content)

	limited, err := store.Search(ctx, "orchid", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.Search(ctx, "orchid", memory.TypeArchival, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
