// Package repotest holds behaviour tests shared by every
// blobstore.MetaDataRepo implementation.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/blobstore"
)

// NewRepoFunc returns an empty, migrated repo private to the calling test.
type NewRepoFunc func(t *testing.T) blobstore.MetaDataRepo

func entry(key string) blobstore.ObjectEntry {
	return blobstore.ObjectEntry{Key: key, Size: int64(len(key)), ETag: "etag-" + key, ContentType: "application/json"}
}

// Run exercises the full MetaDataRepo contract.
func Run(t *testing.T, newRepo NewRepoFunc) {
	t.Run("upsert inserts then updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, inserted, err := repo.Upsert(ctx, entry("a.json"))
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotEqual(t, uuid.Nil, first.ID)
		assert.Equal(t, "a.json", first.Key)

		updated := entry("a.json")
		updated.ETag = "changed"
		updated.Size = 99
		second, inserted, err := repo.Upsert(ctx, updated)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

		got, err := repo.Get(ctx, "a.json")
		require.NoError(t, err)
		assert.Equal(t, "changed", got.Etag)
		assert.Equal(t, int64(99), got.FileSizeBytes)
		assert.Equal(t, "application/json", got.ContentType)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Get(context.Background(), "missing.json")
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound)
	})

	t.Run("delete hides entry and queues cleanup", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		meta, _, err := repo.Upsert(ctx, entry("a.png"))
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, "a.png"))

		_, err = repo.Get(ctx, "a.png")
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound)

		err = repo.Delete(ctx, "a.png")
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound, "second delete")

		pending, err := repo.ListPendingCleanup(ctx, blobstore.ListQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, pending.Items, 1)
		assert.Equal(t, meta.ID, pending.Items[0].ID)

		require.NoError(t, repo.MarkCleanedUp(ctx, meta.ID))
		assert.ErrorIs(t, repo.MarkCleanedUp(ctx, meta.ID), chartcrafter.ErrNotFound)

		pending, err = repo.ListPendingCleanup(ctx, blobstore.ListQuery{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, pending.Items)
	})

	t.Run("upsert revives deleted entry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, _, err := repo.Upsert(ctx, entry("a.json"))
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "a.json"))

		_, inserted, err := repo.Upsert(ctx, entry("a.json"))
		require.NoError(t, err)
		assert.False(t, inserted)

		_, err = repo.Get(ctx, "a.json")
		assert.NoError(t, err)

		pending, err := repo.ListPendingCleanup(ctx, blobstore.ListQuery{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, pending.Items)
	})

	t.Run("mark cleaned up unknown id", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.MarkCleanedUp(context.Background(), uuid.New())
		assert.ErrorIs(t, err, chartcrafter.ErrNotFound)
	})

	t.Run("list paginates in insertion order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var keys []string
		for i := range 5 {
			key := fmt.Sprintf("chart-%d.json", i)
			keys = append(keys, key)
			_, _, err := repo.Upsert(ctx, entry(key))
			require.NoError(t, err)
			// distinct created_at values keep the order deterministic
			time.Sleep(2 * time.Millisecond)
		}

		var got []string
		cursor := ""
		pages := 0
		for {
			result, err := repo.List(ctx, blobstore.ListQuery{Limit: 2, Cursor: cursor})
			require.NoError(t, err)
			pages++
			for _, m := range result.Items {
				got = append(got, m.Key)
			}
			if result.NextCursor == "" {
				break
			}
			cursor = result.NextCursor
		}

		assert.Equal(t, keys, got)
		assert.Equal(t, 3, pages)
	})

	t.Run("list filters by prefix with like metacharacters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, key := range []string{"a_1.json", "ab1.json", "a%2.json", "b.json"} {
			_, _, err := repo.Upsert(ctx, entry(key))
			require.NoError(t, err)
		}

		result, err := repo.List(ctx, blobstore.ListQuery{KeyPrefix: "a_", Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "a_1.json", result.Items[0].Key)

		result, err = repo.List(ctx, blobstore.ListQuery{KeyPrefix: "a", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, result.Items, 3)
	})

	t.Run("list excludes deleted", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, _, err := repo.Upsert(ctx, entry("a.json"))
		require.NoError(t, err)
		_, _, err = repo.Upsert(ctx, entry("b.json"))
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "a.json"))

		result, err := repo.List(ctx, blobstore.ListQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "b.json", result.Items[0].Key)
		assert.Empty(t, result.NextCursor)
	})

	t.Run("list rejects bad cursor", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.List(context.Background(), blobstore.ListQuery{Limit: 10, Cursor: "!!!"})
		assert.ErrorIs(t, err, chartcrafter.ErrInvalidInput)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(context.Background()))
	})
}
