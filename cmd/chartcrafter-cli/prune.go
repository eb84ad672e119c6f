package main

import (
	"os"

	"github.com/spf13/cobra"
)

var pruneYes bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete every expired chart",
	Long: `List all charts with the master key and delete those whose expiry has
passed. A chart that fails to delete is reported and the run continues.

Examples:
  chartcrafter-cli prune
  chartcrafter-cli prune --yes --json`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().BoolVarP(&pruneYes, "yes", "y", false, "skip the confirmation prompt")
}

func runPrune(cmd *cobra.Command, _ []string) error {
	if !pruneYes {
		ok, err := confirm("Delete all expired charts")
		if err != nil || !ok {
			return err
		}
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Prune(commandContext(cmd))
	if err != nil {
		return err
	}

	if err := getFormatter().FormatPrune(os.Stdout, result); err != nil {
		return err
	}

	if result.Deleted < result.Expired {
		return &exitError{code: 1}
	}
	return nil
}
