package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/config"
	"github.com/chartcrafter/chartcrafter/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] <spec.json>",
	Short: "Render a chart spec to local files",
	Long: `Render a chart spec with the server's renderer and write the result to
local files, without storing anything. Useful to preview a spec before
posting it.

The file may hold either the bare chart spec or a full create request
({"name": ..., "description": ..., "data": {...}}).

Examples:
  # Writes chart.png and chart.svg next to the spec
  chartcrafter render chart.json

  # Choose the output base name and size
  chartcrafter render -o /tmp/preview --width 800 --height 400 chart.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderOutput string
	renderWidth  int
	renderHeight int
)

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output path without extension (default: spec path without extension)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "image width (default: render.width)")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "image height (default: render.height)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read spec: %w", err)
	}

	spec := chartSpec(raw)

	width, height := cfg.Render.Width, cfg.Render.Height
	if renderWidth > 0 {
		width = renderWidth
	}
	if renderHeight > 0 {
		height = renderHeight
	}

	out, err := render.New().Render(cmd.Context(), spec, width, height)
	if err != nil {
		return fmt.Errorf("render %s: %w", args[0], err)
	}

	base := renderOutput
	if base == "" {
		base = strings.TrimSuffix(args[0], filepath.Ext(args[0]))
	}

	if err := os.WriteFile(base+".png", out.PNG, 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	if err := os.WriteFile(base+".svg", []byte(out.SVG), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}

	slog.Info("rendered chart", "png", base+".png", "svg", base+".svg", "width", width, "height", height)
	return nil
}

// chartSpec unwraps the data field of a create request; anything else is
// treated as the spec itself.
func chartSpec(raw []byte) json.RawMessage {
	var req struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &req); err == nil && len(req.Data) > 0 && string(req.Data) != "null" {
		return req.Data
	}
	return raw
}
