// Package filesystem stores blobs as files under a sandboxed root directory.
// Writes are atomic (temp file, fsync, rename) and produce SHA256 etags.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/blobstore"
)

const tmpPrefix = ".t"

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

var _ blobstore.FileStorage = (*Store)(nil)

// New creates a Store over root. os.Root confines every operation to the
// directory, so keys cannot escape it.
func New(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens dir (creating it if needed) and returns a Store over it along
// with the underlying root, which the caller closes.
func Open(dir string) (*Store, *os.Root, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("open filesystem store: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open filesystem store: %w", err)
	}

	return New(root), root, nil
}

// Get opens a blob for reading. Returns chartcrafter.ErrNotFound if the file does not exist.
func (s *Store) Get(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, chartcrafter.ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically stores content under key. The temp file is created in the
// destination directory so the final rename never crosses a filesystem.
func (s *Store) Write(ctx context.Context, key string, content io.Reader) (blobstore.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return blobstore.SaveResult{}, err
	}

	dir := path.Dir(key)
	if dir != "." {
		if err := s.root.MkdirAll(dir, 0o750); err != nil {
			return blobstore.SaveResult{}, fmt.Errorf("create directories for %s: %w", key, err)
		}
	}

	tmpName := path.Join(dir, tmpPrefix+uuid.NewString())
	t, err := s.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return blobstore.SaveResult{}, fmt.Errorf("create temp file: %w", err)
	}

	committed := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close temp file", "key", key, "error", closeErr)
		}
		if !committed {
			if rmErr := s.root.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove temp file", "key", key, "error", rmErr)
			}
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(h, t), &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return blobstore.SaveResult{}, fmt.Errorf("write %s: %w", key, err)
	}

	if err := t.Sync(); err != nil {
		return blobstore.SaveResult{}, fmt.Errorf("sync %s: %w", key, err)
	}

	if err := t.Close(); err != nil {
		return blobstore.SaveResult{}, fmt.Errorf("close %s: %w", key, err)
	}

	if err := s.root.Rename(tmpName, key); err != nil {
		return blobstore.SaveResult{}, fmt.Errorf("rename %s: %w", key, err)
	}
	committed = true

	return blobstore.SaveResult{BytesWritten: n, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a blob. Returns chartcrafter.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(key); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return chartcrafter.ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// List walks the root and returns every blob with its size, SHA256 etag and
// a content type guessed from the extension. Leftover temp files are skipped.
// This is meant for one-off index rebuilds.
func (s *Store) List(ctx context.Context) ([]blobstore.ObjectEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []blobstore.ObjectEntry{}

	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}

		entry, err := s.describe(p)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	return entries, nil
}

func (s *Store) describe(key string) (blobstore.ObjectEntry, error) {
	f, err := s.root.Open(key)
	if err != nil {
		return blobstore.ObjectEntry{}, fmt.Errorf("describe %s: %w", key, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "key", key, "error", closeErr)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return blobstore.ObjectEntry{}, fmt.Errorf("describe %s: %w", key, err)
	}

	return blobstore.ObjectEntry{
		Key:         key,
		Size:        n,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: detectContentType(key),
	}, nil
}

func detectContentType(key string) string {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		return "application/octet-stream"
	}
	// mime adds "; charset=utf-8" for some text types
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType
}
