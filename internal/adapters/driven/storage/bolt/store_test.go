package bolt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func entry(id, site string) domain.Node {
	return domain.Node{
		RemoteID:  domain.RemoteID{ID: id, TypeName: "news_Entry", SiteID: site},
		Data:      []byte(`{"id":"` + id + `"}`),
		SourcedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewStore_CreatesBuckets(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(filepath.Join(dir, dbFile))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, dbFile), store.Path())

	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCheckpoint, bucketNodes} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	cp := newTestStore(t).CheckpointStore()

	_, err := cp.Get(ctx, domain.KeyConfigVersion)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cp.Set(ctx, domain.KeyConfigVersion, "cv-1"))
	require.NoError(t, cp.Set(ctx, domain.KeyConfigVersion, "cv-2"))
	v, err := cp.Get(ctx, domain.KeyConfigVersion)
	require.NoError(t, err)
	assert.Equal(t, "cv-2", v)

	require.NoError(t, cp.Delete(ctx, domain.KeyConfigVersion))
	require.NoError(t, cp.Delete(ctx, domain.KeyConfigVersion))
	_, err = cp.Get(ctx, domain.KeyConfigVersion)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.CheckpointStore().Set(ctx, domain.KeyLastContentUpdate, "2024-01-01 10:00:00"))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	v, err := store.CheckpointStore().Get(ctx, domain.KeyLastContentUpdate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 10:00:00", v)
}

func TestNodeStore_CRUD(t *testing.T) {
	ctx := context.Background()
	nodes := newTestStore(t).NodeStore()

	_, err := nodes.Get(ctx, domain.RemoteID{ID: "1", TypeName: "news_Entry"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n := entry("1", "")
	require.NoError(t, nodes.Upsert(ctx, n))
	require.NoError(t, nodes.Upsert(ctx, n))

	got, err := nodes.Get(ctx, n.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, n.RemoteID, got.RemoteID)
	assert.JSONEq(t, `{"id":"1"}`, string(got.Data))
	assert.True(t, n.SourcedAt.Equal(got.SourcedAt))

	require.NoError(t, nodes.Delete(ctx, n.RemoteID))
	require.NoError(t, nodes.Delete(ctx, n.RemoteID))
	require.NoError(t, nodes.Delete(ctx, domain.RemoteID{ID: "1", TypeName: "unknown_Entry"}))
	_, err = nodes.Get(ctx, n.RemoteID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeStore_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	nodes := newTestStore(t).NodeStore()

	for _, n := range []domain.Node{entry("3", ""), entry("1", "2"), entry("1", "1")} {
		require.NoError(t, nodes.Upsert(ctx, n))
	}
	require.NoError(t, nodes.Upsert(ctx, domain.Node{RemoteID: domain.RemoteID{ID: "5", TypeName: "images_Asset"}}))

	list, err := nodes.List(ctx, "news_Entry")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "1", list[0].RemoteID.ID)
	assert.Equal(t, "1", list[0].RemoteID.SiteID)
	assert.Equal(t, "2", list[1].RemoteID.SiteID)
	assert.Equal(t, "3", list[2].RemoteID.ID)

	empty, err := nodes.List(ctx, "pages_Entry")
	require.NoError(t, err)
	assert.Empty(t, empty)

	counts, err := nodes.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"news_Entry": 3, "images_Asset": 1}, counts)

	require.NoError(t, nodes.Delete(ctx, domain.RemoteID{ID: "5", TypeName: "images_Asset"}))
	counts, err = nodes.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"news_Entry": 3}, counts)
}

func TestNodeStore_UpsertValidates(t *testing.T) {
	err := newTestStore(t).NodeStore().Upsert(context.Background(), domain.Node{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
