package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	id, err := svc.Save(ctx, TypePersistent, "user prefers dark mode", []string{"preference"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = svc.Save(ctx, TypeSession, "currently debugging the parser", nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, id, all[0].ID)
	assert.False(t, all[0].CreatedAt.IsZero())

	persistent, err := svc.List(ctx, TypePersistent)
	require.NoError(t, err)
	require.Len(t, persistent, 1)
	assert.Equal(t, "user prefers dark mode", persistent[0].Content)
}

func TestInMemoryStore_SearchRanking(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	_, err := svc.Save(ctx, TypeArchival, "notes about gardening", nil)
	require.NoError(t, err)
	_, err = svc.Save(ctx, TypePersistent, "coffee coffee coffee", nil)
	require.NoError(t, err)
	_, err = svc.Save(ctx, TypeSession, "likes coffee in the morning", nil)
	require.NoError(t, err)

	res, err := svc.Search(ctx, "coffee", "", 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	// Three occurrences rank strictly before one
	assert.Equal(t, "coffee coffee coffee", res[0].Content)
	assert.Equal(t, "likes coffee in the morning", res[1].Content)
}

func TestInMemoryStore_SearchTypeFilter(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	for _, typ := range []Type{TypeSession, TypePersistent, TypeArchival} {
		_, err := svc.Save(ctx, typ, "shared keyword zebra", nil)
		require.NoError(t, err)
	}

	for _, typ := range []Type{TypeSession, TypePersistent, TypeArchival} {
		res, err := svc.Search(ctx, "zebra", typ, 10)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, typ, res[0].Type)
	}
}

func TestInMemoryStore_SearchLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	for i := 0; i < 15; i++ {
		_, err := svc.Save(ctx, TypeArchival, "common topic", nil)
		require.NoError(t, err)
	}

	res, err := svc.Search(ctx, "topic", "", 0)
	require.NoError(t, err)
	assert.Len(t, res, DefaultSearchLimit)

	res, err = svc.Search(ctx, "topic", "", 3)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestInMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	id, err := svc.Save(ctx, TypeSession, "temporary", nil)
	require.NoError(t, err)

	assert.NoError(t, svc.Delete(ctx, id))
	assert.NoError(t, svc.Delete(ctx, id))
	assert.NoError(t, svc.Delete(ctx, "never-existed"))

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Save(ctx, TypeSession, "concurrent note", nil); err != nil {
				t.Errorf("save error: %v", err)
			}
			if _, err := svc.Search(ctx, "concurrent", "", 5); err != nil {
				t.Errorf("search error: %v", err)
			}
			if _, err := svc.List(ctx, ""); err != nil {
				t.Errorf("list error: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestRank_EmptyQuery(t *testing.T) {
	records := []Record{{ID: "1", Content: "anything"}}
	// "a to" yields no tokens of length >= 3
	assert.Nil(t, Rank(records, "a to"))
	assert.Nil(t, Rank(records, ""))
}

func TestRank_TieKeepsInputOrder(t *testing.T) {
	records := []Record{
		{ID: "first", Content: "apple pie"},
		{ID: "second", Content: "apple tart"},
	}
	ranked := Rank(records, "apple")
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].ID)
	assert.Equal(t, "second", ranked[1].ID)
}
