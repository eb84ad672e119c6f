package render_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/render"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{
			name: "line",
			spec: `{"title":{"text":"Sales"},"xAxis":{"type":"category","data":["Jan","Feb","Mar"]},"series":[{"type":"line","name":"2024","data":[120,132,101]}]}`,
		},
		{
			name: "single bar",
			spec: `{"xAxis":{"data":["A","B"]},"series":{"type":"bar","data":[5,8]}}`,
		},
		{
			name: "mixed series as lines",
			spec: `{"xAxis":[{"data":["Jan","Feb"]}],"series":[{"type":"bar","name":"Sales","data":[120,132]},{"type":"line","name":"Growth","data":[20,18]}]}`,
		},
		{
			name: "pie",
			spec: `{"title":{"text":"Share"},"series":[{"type":"pie","data":[{"name":"Go","value":60},{"name":"Rust","value":40}]}]}`,
		},
		{
			name: "flat line",
			spec: `{"series":[{"type":"line","data":[3,3,3]}]}`,
		},
		{
			name: "single point",
			spec: `{"series":[{"type":"line","data":[7]}]}`,
		},
		{
			name: "all zero bars",
			spec: `{"series":[{"type":"bar","data":[0,0]}]}`,
		},
		{
			name: "missing values",
			spec: `{"series":[{"type":"line","data":[1,"-",null,4]}]}`,
		},
	}

	r := render.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(context.Background(), json.RawMessage(tt.spec), 1200, 630)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(strings.TrimSpace(out.SVG), "<svg"), "svg document")
			assert.True(t, bytes.HasPrefix(out.PNG, pngSignature), "png signature")
		})
	}
}

func TestRenderer_RenderNothingToPlot(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"empty object", `{}`},
		{"title only", `{"title":{"text":"empty"}}`},
		{"empty series list", `{"series":[]}`},
		{"series without numbers", `{"series":[{"type":"line","data":["a","b"]}]}`},
		{"pie without positive values", `{"series":[{"type":"pie","data":[0,-1]}]}`},
		{"bar without values", `{"series":[{"type":"bar","data":[]}]}`},
		{"wrong series type", `{"series":"line"}`},
		{"not an object", `[1,2,3]`},
	}

	r := render.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(context.Background(), json.RawMessage(tt.spec), 1200, 630)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(strings.TrimSpace(out.SVG), "<svg"), "svg document")
			assert.True(t, bytes.HasPrefix(out.PNG, pngSignature), "png signature")
		})
	}
}

func TestRenderer_RenderNothingToPlotKeepsTitle(t *testing.T) {
	out, err := render.New().Render(context.Background(), json.RawMessage(`{"title":{"text":"Quarterly"}}`), 800, 400)
	require.NoError(t, err)
	assert.Contains(t, out.SVG, "Quarterly")
}

func TestRenderer_RenderInvalidSize(t *testing.T) {
	_, err := render.New().Render(context.Background(), json.RawMessage(`{"series":{"data":[1,2]}}`), 0, 630)
	require.Error(t, err)
	assert.NotErrorIs(t, err, chartcrafter.ErrInvalidInput)
}

func TestRenderer_RenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := render.New().Render(ctx, json.RawMessage(`{"series":{"data":[1,2]}}`), 1200, 630)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSpec(t *testing.T) {
	t.Run("object and array forms", func(t *testing.T) {
		title, categories, kinds, err := render.ParseSummary(`{"title":[{"text":"T"}],"xAxis":{"data":["a",{"value":"b"},3]},"series":{"type":"bar"}}`)
		require.NoError(t, err)
		assert.Equal(t, "T", title)
		assert.Equal(t, []string{"a", "b", "3"}, categories)
		assert.Equal(t, []string{"bar"}, kinds)
	})

	t.Run("null fields", func(t *testing.T) {
		title, categories, kinds, err := render.ParseSummary(`{"title":null,"xAxis":null,"series":null}`)
		require.NoError(t, err)
		assert.Empty(t, title)
		assert.Empty(t, categories)
		assert.Empty(t, kinds)
	})
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		raw   string
		name  string
		value float64
		ok    bool
	}{
		{`12`, "", 12, true},
		{`-3.5`, "", -3.5, true},
		{`"7"`, "", 7, true},
		{`"-"`, "", 0, false},
		{`null`, "", 0, false},
		{`[1, 9]`, "", 9, true},
		{`[]`, "", 0, false},
		{`{"name":"Go","value":60}`, "Go", 60, true},
		{`{"name":"Go","value":[2, 4]}`, "Go", 4, true},
		{`{"name":"Go"}`, "Go", 0, false},
		{`true`, "", 0, false},
	}

	for _, tt := range tests {
		p := render.ParsePoint(tt.raw)
		assert.Equal(t, tt.ok, p.OK(), tt.raw)
		assert.Equal(t, tt.name, p.Name(), tt.raw)
		if tt.ok {
			assert.InDelta(t, tt.value, p.Value(), 1e-9, tt.raw)
		}
	}
}
