package badgerstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/badgerstore"
	"github.com/chartcrafter/chartcrafter/internal/storetest"
)

func openInMemory(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) chartcrafter.ObjectStore {
		return openInMemory(t)
	})
}

func TestOpen_Validation(t *testing.T) {
	_, err := badgerstore.Open(badgerstore.Config{})
	assert.Error(t, err, "path is required")

	cfg := badgerstore.InMemoryConfig()
	cfg.GCDiscardRatio = 1.5
	_, err = badgerstore.Open(cfg)
	assert.Error(t, err)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := badgerstore.DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	store, err := badgerstore.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a.json", []byte(`{"a":1}`), chartcrafter.ContentTypeJSON))

	n, err := store.RunGC(0.5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)

	require.NoError(t, store.Close())

	reopened, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	data, err := reopened.Get(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)
}

func TestStore_ListUsesWriteTime(t *testing.T) {
	store := openInMemory(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store.SetNow(func() time.Time { return t0 })
	require.NoError(t, store.Put(ctx, "a.json", []byte("{}"), chartcrafter.ContentTypeJSON))

	store.SetNow(func() time.Time { return t0.Add(time.Hour) })
	require.NoError(t, store.Put(ctx, "b.json", []byte("{}"), chartcrafter.ContentTypeJSON))

	blobs, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []chartcrafter.BlobInfo{
		{Key: "a.json", UploadedAt: t0},
		{Key: "b.json", UploadedAt: t0.Add(time.Hour)},
	}, blobs)
}

func TestStore_PingAfterClose(t *testing.T) {
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}
