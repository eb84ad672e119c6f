// Package gcsstore implements chartcrafter.ObjectStore on a Google Cloud
// Storage bucket. Object write times come from the bucket's own metadata.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/chartcrafter/chartcrafter"
)

// Config describes the bucket to use.
type Config struct {
	// Bucket is the bucket name. Required.
	Bucket string `mapstructure:"bucket"`

	// Prefix is prepended to every key, so several deployments can share a
	// bucket. A trailing slash is added when missing.
	Prefix string `mapstructure:"prefix"`

	// CredentialsFile is a service account key. Empty uses application
	// default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Endpoint overrides the API endpoint, e.g. for a local emulator.
	// Requests to a custom endpoint are sent without authentication.
	Endpoint string `mapstructure:"endpoint"`
}

// Store is a chartcrafter.ObjectStore backed by a GCS bucket.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

var _ chartcrafter.ObjectStore = (*Store)(nil)

// New creates a storage client from cfg. The caller must Close the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new gcs store: create client: %w", err)
	}

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client. Closing the store closes client.
func NewWithClient(client *storage.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: normalizePrefix(prefix),
	}
}

func clientOptions(cfg Config) ([]option.ClientOption, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new gcs store: bucket is required")
	}

	var opts []option.ClientOption

	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("new gcs store: service account key not found at %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	return opts, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	w := s.bucket.Object(s.objectName(key)).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}

	// the object is committed on Close
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	r, err := s.bucket.Object(s.objectName(key)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, mapError(err))
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("get %s: read: %w", key, err)
	}

	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if err := s.bucket.Object(s.objectName(key)).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", key, mapError(err))
	}

	return nil
}

// List returns every object under the store prefix plus prefix. UploadedAt
// is the object's last update time as reported by GCS.
func (s *Store) List(ctx context.Context, prefix string) ([]chartcrafter.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	query := &storage.Query{Prefix: s.objectName(prefix)}
	if err := query.SetAttrSelection([]string{"Name", "Updated"}); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	blobs := []chartcrafter.BlobInfo{}
	it := s.bucket.Objects(ctx, query)

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}

		key, ok := s.keyOf(attrs.Name)
		if !ok {
			continue
		}
		blobs = append(blobs, chartcrafter.BlobInfo{Key: key, UploadedAt: attrs.Updated})
	}

	return blobs, nil
}

// Ping checks that the bucket exists and is reachable with the configured
// credentials.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) objectName(key string) string {
	return s.prefix + key
}

func (s *Store) keyOf(name string) (string, bool) {
	key, ok := strings.CutPrefix(name, s.prefix)
	if !ok || key == "" || strings.HasSuffix(key, "/") {
		return "", false
	}
	return key, true
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func mapError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return chartcrafter.ErrNotFound
	}
	return err
}
