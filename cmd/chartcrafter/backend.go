package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/badgerstore"
	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/config"
	"github.com/chartcrafter/chartcrafter/database"
	"github.com/chartcrafter/chartcrafter/filesystem"
	"github.com/chartcrafter/chartcrafter/gcsstore"
)

// backend is an opened object store plus the concrete handles that some
// commands need for maintenance.
type backend struct {
	name  string
	store chartcrafter.ObjectStore

	// blobs is set for the filesystem backend.
	blobs *blobstore.Store
	db    database.Database
	// badger is set for the badger backend.
	badger *badgerstore.Store

	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("failed to close backend", "backend", b.name, "err", err)
		}
	}
}

type openOptions struct {
	// migrate creates the metadata table when missing.
	migrate bool
	// createDir creates the storage directory when missing.
	createDir bool
}

func openBackend(ctx context.Context, cfg *config.Config, opts openOptions) (*backend, error) {
	b := &backend{name: cfg.Storage.Backend}

	switch cfg.Storage.Backend {
	case "filesystem":
		if err := b.openFilesystem(ctx, cfg, opts); err != nil {
			b.Close()
			return nil, err
		}
	case "badger":
		bc := badgerstore.Config{
			Path:           cfg.Storage.Badger.Path,
			InMemory:       cfg.Storage.Badger.InMemory,
			SyncWrites:     cfg.Storage.Badger.SyncWrites,
			Logger:         slog.Default().With("component", "badger"),
			GCInterval:     cfg.Storage.Badger.GCInterval,
			GCDiscardRatio: cfg.Storage.Badger.GCDiscardRatio,
		}
		store, err := badgerstore.Open(bc)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		b.store = store
		b.badger = store
		b.closers = append(b.closers, store.Close)
	case "gcs":
		store, err := gcsstore.New(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("open gcs store: %w", err)
		}
		b.store = store
		b.closers = append(b.closers, store.Close)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}

	slog.Info("opened storage backend", "backend", b.name)
	return b, nil
}

func (b *backend) openFilesystem(ctx context.Context, cfg *config.Config, opts openOptions) error {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	b.db = db
	b.closers = append(b.closers, db.Close)

	if err = db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if opts.migrate {
		if err = db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err = db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}
	slog.Info("connected to database", "type", cfg.Database.Type)

	var (
		storage *filesystem.Store
		root    *os.Root
	)
	if opts.createDir {
		storage, root, err = filesystem.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
	} else {
		if _, err = os.Stat(cfg.Storage.Path); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage directory does not exist: %s", cfg.Storage.Path)
		}
		root, err = os.OpenRoot(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open storage root: %w", err)
		}
		storage = filesystem.New(root)
	}
	b.closers = append(b.closers, root.Close)

	blobs, err := blobstore.New(db.GetRepo(), storage, blobstore.Config{
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	b.blobs = blobs
	b.store = blobs
	return nil
}

// newService builds the chart service on top of an opened backend.
func newService(cfg *config.Config, b *backend, renderer chartcrafter.Renderer) (*chartcrafter.ChartService, error) {
	v := cfg.Service.Version
	if version != "dev" {
		v = version
	}

	service, err := chartcrafter.NewChartService(b.store, renderer, chartcrafter.ServiceConfig{
		MasterKey:       cfg.Service.MasterKey,
		BaseURL:         cfg.Service.BaseURL,
		Backend:         b.name,
		Version:         v,
		Width:           cfg.Render.Width,
		Height:          cfg.Render.Height,
		ListConcurrency: cfg.Service.ListConcurrency,
		Hash:            cfg.Hashing,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return service, nil
}
