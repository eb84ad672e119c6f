package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the metadata database from storage files",
	Long: `Create the metadata table and index every file already present in the
storage directory. This is useful when:
  - Setting up Chart Crafter for the first time
  - Recovering metadata after database loss
  - Moving a storage directory to a new database

Only the filesystem backend keeps a separate index; for badger and gcs
this command only checks that the store is reachable.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg, openOptions{migrate: true, createDir: true})
	if err != nil {
		return err
	}
	defer b.Close()

	if b.blobs == nil {
		if err := b.store.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s store: %w", b.name, err)
		}
		slog.Info("nothing to index", "backend", b.name)
		return nil
	}

	slog.Info("scanning storage directory", "path", cfg.Storage.Path)

	indexed, err := b.blobs.Populate(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	slog.Info("initialization complete", "files_indexed", indexed)
	return nil
}
