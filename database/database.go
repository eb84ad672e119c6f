package database

import (
	"context"
	"fmt"

	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/database/postgres"
	"github.com/chartcrafter/chartcrafter/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN    string           `mapstructure:"dsn" validate:"required"`
	Tables blobstore.Tables `mapstructure:"tables"`
}

// Database is a connected metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() blobstore.MetaDataRepo
	Close() error
}

// Connect opens the configured backend. It does not migrate or validate;
// callers decide which of the two they need.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}
