package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/config"
	"github.com/chartcrafter/chartcrafter/render"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired charts and reclaim storage",
	Long: `Delete every expired chart and every chart record that cannot be read.

After the sweep, backend specific maintenance runs:
  - filesystem: files whose deletion failed earlier are removed and their
    metadata entries marked as cleaned up
  - badger: value log garbage collection

Run this periodically, e.g. from cron.`,
	RunE: runCleanup,
}

var (
	cleanupLimit     int
	cleanupSkipSweep bool
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupLimit, "limit", 100, "metadata page size when removing leftover files")
	cleanupCmd.Flags().BoolVar(&cleanupSkipSweep, "skip-sweep", false, "only run backend maintenance")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg, openOptions{})
	if err != nil {
		return err
	}
	defer b.Close()

	if !cleanupSkipSweep {
		service, err := newService(cfg, b, render.New())
		if err != nil {
			return err
		}

		slog.Info("sweeping expired charts")
		result, err := service.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		slog.Info("sweep complete", "scanned", result.Scanned, "deleted", result.Deleted, "failed", result.Failed)
	}

	switch {
	case b.blobs != nil:
		cleaned, err := b.blobs.Tombstone(ctx, blobstore.ListQuery{Limit: cleanupLimit})
		if err != nil {
			return fmt.Errorf("tombstone: %w", err)
		}
		slog.Info("leftover files removed", "files_cleaned", cleaned)
	case b.badger != nil:
		rewritten, err := b.badger.RunGC(cfg.Storage.Badger.GCDiscardRatio)
		if err != nil {
			return fmt.Errorf("badger gc: %w", err)
		}
		slog.Info("value log gc complete", "files_rewritten", rewritten)
	}

	return nil
}
