package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "chartcrafter",
	Short:   "Render charts to shareable, expiring images",
	Long: `Chart Crafter accepts chart configurations over HTTP, renders them to
SVG and PNG, and serves a shareable page and image until the chart
expires or is deleted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("storage-backend", "", "storage backend: filesystem, badger, gcs (default: filesystem, env: CHARTCRAFTER_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: CHARTCRAFTER_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("db-type", "", "metadata database type: sqlite, postgres (default: sqlite, env: CHARTCRAFTER_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "metadata database connection string (default: chartcrafter.db, env: CHARTCRAFTER_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: CHARTCRAFTER_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
