package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter"
)

var (
	createName        string
	createDescription string
	createExpiresIn   string
)

var createCmd = &cobra.Command{
	Use:   "create <spec.json|->",
	Short: "Create a chart from a JSON file",
	Long: `Create a chart on the server and print its URL and deletion password.

The file holds either a bare chart configuration or a full create request
({"name", "description", "data", "expiresIn"}). Flags override the request
fields. Use "-" to read from standard input.

The password is shown only once. Keep it to delete the chart later.

Examples:
  chartcrafter-cli create revenue.json --name "Q1 Revenue" --expires 7d
  cat request.json | chartcrafter-cli create -
  chartcrafter-cli create revenue.json -q   # prints only the URL`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "chart name")
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "chart description")
	createCmd.Flags().StringVar(&createExpiresIn, "expires", "", "expiry duration such as 1h, 7d or 30d (default 1d)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}

	req, err := buildCreateRequest(raw)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Create(commandContext(cmd), req)
	if err != nil {
		return err
	}

	return getFormatter().FormatCreate(os.Stdout, result)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided input
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// buildCreateRequest accepts a full create request or a bare chart
// configuration and applies the command-line overrides.
func buildCreateRequest(raw []byte) (chartcrafter.CreateRequest, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return chartcrafter.CreateRequest{}, fmt.Errorf("parse chart file: %w", err)
	}

	var req chartcrafter.CreateRequest
	if _, ok := probe["data"]; ok {
		if err := json.Unmarshal(raw, &req); err != nil {
			return chartcrafter.CreateRequest{}, fmt.Errorf("parse create request: %w", err)
		}
	} else {
		req.Data = json.RawMessage(raw)
	}

	if createName != "" {
		req.Name = createName
	}
	if createDescription != "" {
		req.Description = createDescription
	}
	if createExpiresIn != "" {
		req.ExpiresIn = createExpiresIn
	}

	if req.Name == "" {
		return chartcrafter.CreateRequest{}, errors.New("a chart name is required (set --name or \"name\" in the file)")
	}

	return req, nil
}
