// Package blobstore implements chartcrafter.ObjectStore on top of a SQL
// metadata index and a file storage backend. The index makes listing cheap
// and gives every blob an upload time; the file storage holds the bytes.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/chartcrafter/chartcrafter"
)

const (
	DefaultPageSize       = 500
	DefaultCleanupTimeout = 30 * time.Second
)

// MetaDataRepo defines the interface for managing blob metadata persistence.
// Implementations must handle concurrent access safely and ensure data consistency.
//
// All methods accept a context for cancellation and timeout control.
// Implementations should respect context cancellation and return appropriate errors.
type MetaDataRepo interface {
	// Get retrieves metadata for a live blob by its key.
	//
	// Returns:
	//   - MetaData: The metadata entry if found
	//   - error: chartcrafter.ErrNotFound if key doesn't exist, or other database errors
	Get(ctx context.Context, key string) (MetaData, error)

	// Upsert creates or updates metadata for a blob.
	// Updating an entry that was soft deleted brings it back to life.
	//
	// Returns:
	//   - MetaData: The created or updated metadata entry with ID and timestamps
	//   - bool: true if a new entry was created, false if existing entry was updated
	//   - error: Any database or validation error
	Upsert(ctx context.Context, entry ObjectEntry) (MetaData, bool, error)

	// Delete soft deletes the metadata of a blob by its key.
	//
	// Returns:
	//   - error: chartcrafter.ErrNotFound if key doesn't exist, or other database errors
	Delete(ctx context.Context, key string) error

	// List retrieves a page of live entries ordered by (created_at, key).
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - q: ListQuery with optional key prefix filter, limit, and cursor for pagination
	//
	// Returns:
	//   - ListResult: Contains matching metadata items and cursor for next page
	//   - error: Any database error
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// ListPendingCleanup retrieves a page of soft-deleted entries whose
	// file has not been removed yet (deleted_at IS NOT NULL AND cleaned_up_at IS NULL).
	ListPendingCleanup(ctx context.Context, q ListQuery) (ListResult, error)

	// MarkCleanedUp records that the file of a soft-deleted entry is gone.
	//
	// Returns:
	//   - error: chartcrafter.ErrNotFound if entry doesn't exist or isn't pending cleanup
	MarkCleanedUp(ctx context.Context, id uuid.UUID) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
}

// FileStorage defines the interface for physical blob storage operations.
//
// All methods accept a context for cancellation and timeout control.
type FileStorage interface {
	// Get opens a blob for reading. The caller closes the reader.
	//
	// Returns:
	//   - io.ReadSeekCloser: Reader for blob content
	//   - error: chartcrafter.ErrNotFound if blob doesn't exist, or other storage errors
	Get(ctx context.Context, key string) (io.ReadSeekCloser, error)

	// Write stores content under key, replacing any existing blob.
	//
	// Implementations should:
	//   - Write atomically (e.g., write to temp file then rename)
	//   - Compute an ETag while writing
	//   - Clean up partial writes when the context is cancelled
	Write(ctx context.Context, key string, content io.Reader) (SaveResult, error)

	// Delete removes a blob. It does not touch metadata.
	//
	// Returns:
	//   - error: chartcrafter.ErrNotFound if blob doesn't exist, or other storage errors
	Delete(ctx context.Context, key string) error

	// List returns every blob currently held, for rebuilding the metadata
	// index. It returns an empty slice (not nil) when storage is empty.
	//
	// Warning: This reads every blob to compute its ETag.
	List(ctx context.Context) ([]ObjectEntry, error)
}

// Config holds configuration options for Store.
type Config struct {
	PageSize       int           // Page size used when listing the index (default: 500)
	CleanupTimeout time.Duration // Timeout for cleanup after a failed write (default: 30s)
}

// Store is a chartcrafter.ObjectStore backed by a MetaDataRepo and a FileStorage.
type Store struct {
	repo           MetaDataRepo
	storage        FileStorage
	pageSize       int
	cleanupTimeout time.Duration
}

var _ chartcrafter.ObjectStore = (*Store)(nil)

func New(repo MetaDataRepo, storage FileStorage, cfg Config) (*Store, error) {
	if repo == nil || storage == nil {
		return nil, errors.New("new blob store: repo and storage are required")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = DefaultCleanupTimeout
	}

	return &Store{
		repo:           repo,
		storage:        storage,
		pageSize:       pageSize,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// Put writes the blob and then indexes it. If indexing fails, the written
// file is removed using a background context with the configured cleanup
// timeout so the cleanup completes even if ctx was cancelled.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	if !IsValidKey(key) {
		return fmt.Errorf("put %s: %w: invalid key", key, chartcrafter.ErrInvalidInput)
	}

	if contentType == "" {
		return fmt.Errorf("put %s: %w: content type cannot be empty", key, chartcrafter.ErrInvalidInput)
	}

	saved, err := s.storage.Write(ctx, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put %s: write failed: %w", key, err)
	}

	_, _, upsertErr := s.repo.Upsert(ctx, ObjectEntry{
		Key:         key,
		Size:        saved.BytesWritten,
		ETag:        saved.Etag,
		ContentType: contentType,
	})
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, key); delErr != nil {
			return fmt.Errorf("put %s: metadata upsert failed (%w) and cleanup failed: %w", key, upsertErr, delErr)
		}
		return fmt.Errorf("put %s: metadata upsert failed: %w", key, upsertErr)
	}

	return nil
}

// Get returns the content of a live blob.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if !IsValidKey(key) {
		return nil, fmt.Errorf("get %s: %w", key, chartcrafter.ErrNotFound)
	}

	m, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	f, err := s.storage.Get(ctx, m.Key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close blob", "key", key, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("get %s: read: %w", key, err)
	}

	return data, nil
}

// Delete soft deletes the blob's metadata and then removes the file. A file
// that cannot be removed stays pending cleanup and is picked up by Tombstone.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if !IsValidKey(key) {
		return fmt.Errorf("delete %s: %w", key, chartcrafter.ErrNotFound)
	}

	m, err := s.repo.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if err := s.removeFile(ctx, m); err != nil {
		slog.Warn("blob left pending cleanup", "key", key, "error", err)
	}

	return nil
}

// List pages through the index and returns every live blob under prefix.
// UploadedAt is the time the blob was last written.
func (s *Store) List(ctx context.Context, prefix string) ([]chartcrafter.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	blobs := []chartcrafter.BlobInfo{}
	cursor := ""

	for {
		result, err := s.repo.List(ctx, ListQuery{
			KeyPrefix: prefix,
			Limit:     s.pageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}

		for _, m := range result.Items {
			blobs = append(blobs, chartcrafter.BlobInfo{Key: m.Key, UploadedAt: m.UpdatedAt})
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return blobs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Populate synchronizes metadata from the files in storage.
// It lists all files in storage and creates or updates their corresponding metadata entries.
//
// This is typically used during initialization or recovery to bring the
// index in sync with the files on disk. It stops at the first error.
//
// Note: This operation is not atomic. If it fails partway through, some files may have
// been indexed while others remain unprocessed.
func (s *Store) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	files, listErr := s.storage.List(ctx)
	if listErr != nil {
		return 0, fmt.Errorf("populate: %w", listErr)
	}

	for i, file := range files {
		if _, _, upsertErr := s.repo.Upsert(ctx, file); upsertErr != nil {
			return i, fmt.Errorf("populate '%s': %w", file.Key, upsertErr)
		}
	}

	return len(files), nil
}

// Tombstone permanently removes the files of soft-deleted blobs and marks
// them as cleaned up. It pages through all pending items until none remain.
//
// A file that is already gone (ErrNotFound) is still marked as cleaned up;
// this covers a previous attempt that deleted the file but failed to update
// the metadata.
//
// Returns the number of items cleaned up.
func (s *Store) Tombstone(ctx context.Context, q ListQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("tombstone: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	totalCleaned := 0
	cursor := q.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", err)
		}

		result, listErr := s.repo.ListPendingCleanup(ctx, ListQuery{
			KeyPrefix: q.KeyPrefix,
			Limit:     limit,
			Cursor:    cursor,
		})
		if listErr != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", listErr)
		}

		if len(result.Items) == 0 {
			break
		}

		for _, m := range result.Items {
			if err := s.removeFile(ctx, m); err != nil {
				return totalCleaned, fmt.Errorf("tombstone '%s': %w", m.Key, err)
			}
			totalCleaned++
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return totalCleaned, nil
}

func (s *Store) removeFile(ctx context.Context, m MetaData) error {
	if err := s.storage.Delete(ctx, m.Key); err != nil && !errors.Is(err, chartcrafter.ErrNotFound) {
		return err
	}
	return s.repo.MarkCleanedUp(ctx, m.ID)
}

// IsValidKey reports whether key is usable as a blob key. Keys are relative,
// slash separated, and may not contain dot segments, hidden names,
// backslashes, whitespace or control characters.
func IsValidKey(key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}

	if strings.ContainsAny(key, `\?#~`) {
		return false
	}

	for _, seg := range strings.Split(key, "/") {
		// empty segments cover leading, trailing and doubled slashes;
		// a leading dot also rejects "." and ".." and temp file names
		if seg == "" || seg[0] == '.' {
			return false
		}
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
