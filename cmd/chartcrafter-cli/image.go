package main

import (
	"os"

	"github.com/spf13/cobra"
)

var imageOutput string

var imageCmd = &cobra.Command{
	Use:   "image <id>",
	Short: "Download the PNG of a chart",
	Long: `Download the rendered PNG of a chart.

The argument is a chart id or a chart or thumbnail URL. Writes <id>.png
by default. Use -o - to write to standard output.

Examples:
  chartcrafter-cli image 20240301-0b3c6a8e
  chartcrafter-cli image 20240301-0b3c6a8e -o revenue.png
  chartcrafter-cli image 20240301-0b3c6a8e -o - > revenue.png`,
	Args: cobra.ExactArgs(1),
	RunE: runImage,
}

func init() {
	imageCmd.Flags().StringVarP(&imageOutput, "output", "o", "", "output path (- for stdout)")
}

func runImage(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Image(commandContext(cmd), args[0], imageOutput, os.Stdout)
	if err != nil {
		return err
	}

	// Keep stdout clean when it carries the image
	out := os.Stdout
	if result.LocalPath == "-" {
		out = os.Stderr
	}
	return getFormatter().FormatImage(out, result)
}
