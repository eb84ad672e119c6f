// Package badgerstore implements chartcrafter.ObjectStore on an embedded
// BadgerDB. It needs no external services, which makes it a good fit for
// single-node deployments.
//
// Each blob occupies two keys written in one transaction:
//
//	blob/<key>  raw content
//	meta/<key>  JSON {contentType, size, uploadedAt}
//
// List scans only the meta/ keyspace, so it never loads blob content.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/chartcrafter/chartcrafter"
)

const (
	blobPrefix = "blob/"
	metaPrefix = "meta/"
)

// Config holds configuration for a badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs.
	// Zero disables it. It never runs for in-memory stores.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction before a value log
	// file is rewritten.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type meta struct {
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a chartcrafter.ObjectStore backed by BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time

	stopGC chan struct{}
	gcDone chan struct{}
}

var _ chartcrafter.ObjectStore = (*Store)(nil)

// Open opens (or creates) a BadgerDB and starts the GC loop when configured.
// The caller must Close the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open badger store: path is required for persistent database")
	}
	if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio > 1 {
		return nil, errors.New("open badger store: gc discard ratio must be between 0 and 1")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("open badger store: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio == 0 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, ratio)
	}

	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	if key == "" {
		return fmt.Errorf("put: %w: key cannot be empty", chartcrafter.ErrInvalidInput)
	}

	m, err := json.Marshal(meta{
		ContentType: contentType,
		Size:        len(data),
		UploadedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("put %s: encode metadata: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(blobPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key), m)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, mapError(err))
	}

	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaPrefix + key)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(blobPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, mapError(err))
	}

	return nil
}

// List scans the metadata keyspace under prefix. Entries whose metadata
// cannot be decoded are skipped with a warning.
func (s *Store) List(ctx context.Context, prefix string) ([]chartcrafter.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	blobs := []chartcrafter.BlobInfo{}
	scan := []byte(metaPrefix + prefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: scan})
		defer it.Close()

		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := string(item.Key()[len(metaPrefix):])

			var m meta
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				s.logger.Warn("skipping blob with unreadable metadata", "key", key, "error", err)
				continue
			}

			blobs = append(blobs, chartcrafter.BlobInfo{Key: key, UploadedAt: m.UploadedAt})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return blobs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if s.db.IsClosed() {
		return errors.New("ping: badger database is closed")
	}
	return nil
}

// RunGC rewrites value log files until there is nothing left to reclaim.
// It returns the number of files rewritten.
func (s *Store) RunGC(ratio float64) (int, error) {
	rewritten := 0
	for {
		err := s.db.RunValueLogGC(ratio)
		if err == nil {
			rewritten++
			continue
		}
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) ||
			errors.Is(err, badger.ErrGCInMemoryMode) {
			return rewritten, nil
		}
		return rewritten, fmt.Errorf("run value log gc: %w", err)
	}
}

func (s *Store) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			n, err := s.RunGC(ratio)
			if err != nil {
				s.logger.Warn("badger value log gc failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("badger value log gc completed", "rewritten", n)
			}
		}
	}
}

func mapError(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chartcrafter.ErrNotFound
	}
	return err
}
