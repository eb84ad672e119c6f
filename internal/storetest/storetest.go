// Package storetest holds behaviour tests shared by every
// chartcrafter.ObjectStore implementation.
package storetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
)

const (
	recordKey = "20240301-0b3c6a8e-5f0e-4c1e-9d2a-7c4b1e2f3a4b.json"
	imageKey  = "20240301-0b3c6a8e-5f0e-4c1e-9d2a-7c4b1e2f3a4b.png"
)

// NewStoreFunc returns an empty store private to the calling test.
type NewStoreFunc func(t *testing.T) chartcrafter.ObjectStore

// Run exercises the full ObjectStore contract.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("put then get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, recordKey, []byte(`{"name":"a"}`), chartcrafter.ContentTypeJSON))

		data, err := store.Get(ctx, recordKey)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"name":"a"}`), data)
	})

	t.Run("put overwrites", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, imageKey, []byte("old"), chartcrafter.ContentTypePNG))
		require.NoError(t, store.Put(ctx, imageKey, []byte("new"), chartcrafter.ContentTypePNG))

		data, err := store.Get(ctx, imageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), data)
	})

	t.Run("binary content survives", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}

		require.NoError(t, store.Put(ctx, imageKey, png, chartcrafter.ContentTypePNG))

		data, err := store.Get(ctx, imageKey)
		require.NoError(t, err)
		assert.Equal(t, png, data)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(context.Background(), recordKey)
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, recordKey, []byte("{}"), chartcrafter.ContentTypeJSON))
		require.NoError(t, store.Delete(ctx, recordKey))

		_, err := store.Get(ctx, recordKey)
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound)

		assert.ErrorIs(t, store.Delete(ctx, recordKey), chartcrafter.ErrNotFound)
	})

	t.Run("put after delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, recordKey, []byte("v1"), chartcrafter.ContentTypeJSON))
		require.NoError(t, store.Delete(ctx, recordKey))
		require.NoError(t, store.Put(ctx, recordKey, []byte("v2"), chartcrafter.ContentTypeJSON))

		data, err := store.Get(ctx, recordKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)
	})

	t.Run("list", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		before := time.Now().Add(-time.Second)

		empty, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		require.NoError(t, store.Put(ctx, recordKey, []byte("{}"), chartcrafter.ContentTypeJSON))
		require.NoError(t, store.Put(ctx, imageKey, []byte("png"), chartcrafter.ContentTypePNG))
		require.NoError(t, store.Put(ctx, "other.json", []byte("{}"), chartcrafter.ContentTypeJSON))
		require.NoError(t, store.Delete(ctx, "other.json"))

		blobs, err := store.List(ctx, "")
		require.NoError(t, err)

		keys := make([]string, 0, len(blobs))
		for _, b := range blobs {
			keys = append(keys, b.Key)
			assert.True(t, b.UploadedAt.After(before), "upload time of %s", b.Key)
		}
		sort.Strings(keys)
		assert.Equal(t, []string{recordKey, imageKey}, keys)

		prefixed, err := store.List(ctx, "20240301-")
		require.NoError(t, err)
		assert.Len(t, prefixed, 2)

		none, err := store.List(ctx, "2025")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, store.Put(ctx, recordKey, []byte("{}"), chartcrafter.ContentTypeJSON), context.Canceled)
		_, err := store.Get(ctx, recordKey)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
