package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

func TestCheckpointStore(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	_, err := store.Get(ctx, domain.KeyConfigVersion)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Set(ctx, domain.KeyConfigVersion, "cv-1"))
	require.NoError(t, store.Set(ctx, domain.KeyConfigVersion, "cv-2"))
	v, err := store.Get(ctx, domain.KeyConfigVersion)
	require.NoError(t, err)
	assert.Equal(t, "cv-2", v)

	require.NoError(t, store.Delete(ctx, domain.KeyConfigVersion))
	require.NoError(t, store.Delete(ctx, domain.KeyConfigVersion))
	_, err = store.Get(ctx, domain.KeyConfigVersion)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeStore(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	a := domain.Node{RemoteID: domain.RemoteID{ID: "2", TypeName: "news_Entry"}, Data: []byte(`{"v":1}`)}
	b := domain.Node{RemoteID: domain.RemoteID{ID: "1", TypeName: "news_Entry", SiteID: "2"}}
	c := domain.Node{RemoteID: domain.RemoteID{ID: "1", TypeName: "news_Entry", SiteID: "1"}}
	asset := domain.Node{RemoteID: domain.RemoteID{ID: "2", TypeName: "images_Asset"}}

	for _, n := range []domain.Node{a, b, c, asset} {
		require.NoError(t, store.Upsert(ctx, n))
	}
	a.Data = []byte(`{"v":2}`)
	require.NoError(t, store.Upsert(ctx, a))

	got, err := store.Get(ctx, a.RemoteID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))

	list, err := store.List(ctx, "news_Entry")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, c.RemoteID, list[0].RemoteID)
	assert.Equal(t, b.RemoteID, list[1].RemoteID)
	assert.Equal(t, a.RemoteID, list[2].RemoteID)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"news_Entry": 3, "images_Asset": 1}, counts)

	require.NoError(t, store.Delete(ctx, asset.RemoteID))
	require.NoError(t, store.Delete(ctx, asset.RemoteID))
	_, err = store.Get(ctx, asset.RemoteID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.Upsert(ctx, domain.Node{}), domain.ErrInvalidInput)
}

func TestNodeStore_TypePrefixDoesNotLeak(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.Node{RemoteID: domain.RemoteID{ID: "1", TypeName: "news"}}))
	require.NoError(t, store.Upsert(ctx, domain.Node{RemoteID: domain.RemoteID{ID: "1", TypeName: "news_Entry"}}))

	list, err := store.List(ctx, "news")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNodeStore_Concurrent(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.RemoteID{ID: fmt.Sprint(i), TypeName: "news_Entry"}
			assert.NoError(t, store.Upsert(ctx, domain.Node{RemoteID: id}))
			_, _ = store.List(ctx, "news_Entry")
		}(i)
	}
	wg.Wait()

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, counts["news_Entry"])
}

func TestSyncRunStore(t *testing.T) {
	store := NewSyncRunStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Record(ctx, nil), domain.ErrInvalidInput)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &domain.SyncRun{ID: fmt.Sprintf("run-%d", i), Mode: domain.SyncModeDelta}))
	}
	require.NoError(t, store.Record(ctx, &domain.SyncRun{ID: "run-4", Mode: domain.SyncModeDelta, Success: true}))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-4", recent[0].ID)
	assert.True(t, recent[0].Success)
	assert.Equal(t, "run-3", recent[1].ID)

	require.NoError(t, store.Prune(ctx, 3))
	recent, err = store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-2", recent[2].ID)
}
