package main

import (
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server status",
	Long: `Show the server's status report: version, uptime and storage state.

Exits non-zero when the server reports itself degraded.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	report, err := client.Status(commandContext(cmd))
	if report == nil {
		return err
	}

	if fmtErr := getFormatter().FormatStatus(os.Stdout, report); fmtErr != nil {
		return fmtErr
	}

	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}
