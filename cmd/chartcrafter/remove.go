package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/config"
	"github.com/chartcrafter/chartcrafter/render"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <id1> [id2] ...",
	Short: "Delete charts directly from storage",
	Long: `Delete charts and their images directly from the configured storage,
without going through the HTTP server. The configured master key is used
as the credential, so it must be set.

Examples:
  # Remove a single chart
  chartcrafter remove 20240301-0b3c6a8e-5f0e-4c1e-9d2a-7c4b1e2f3a4b

  # Remove quietly (suppress per-chart output)
  chartcrafter remove -q <id1> <id2>`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var removeQuiet bool

func init() {
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-chart output")
	removeCmd.Flags().String("master-key", "", "master key (env: CHARTCRAFTER_SERVICE_MASTER_KEY)")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Service.MasterKey == "" {
		return errors.New("remove requires a master key (service.master_key)")
	}

	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg, openOptions{})
	if err != nil {
		return err
	}
	defer b.Close()

	service, err := newService(cfg, b, render.New())
	if err != nil {
		return err
	}

	creds := chartcrafter.Credentials{BearerToken: cfg.Service.MasterKey}
	removed := 0
	notFound := 0

	for _, id := range args {
		deleteErr := service.Delete(ctx, id, creds)
		if errors.Is(deleteErr, chartcrafter.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "id", id)
			}
			continue
		}
		if deleteErr != nil {
			return fmt.Errorf("remove %s: %w", id, deleteErr)
		}
		removed++
		if !removeQuiet {
			slog.Info("removed", "id", id)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}
