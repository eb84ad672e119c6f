package main

import (
	"os"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all charts",
	Long: `List every chart on the server with its status and expiry.

Requires the master key.

Examples:
  chartcrafter-cli list
  chartcrafter-cli list --json
  chartcrafter-cli -p prod list`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(commandContext(cmd))
	if err != nil {
		return err
	}

	return getFormatter().FormatList(os.Stdout, result)
}
