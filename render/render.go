// Package render draws chart specs with go-chart. It understands the subset
// of the echarts option format that matters for a static image: the title,
// the category axis and the series data. Everything else (tooltips, zoom,
// animation) is ignored.
//
// A spec whose first series is a pie becomes a pie chart, a spec with a
// single bar series becomes a bar chart, and anything else is drawn as one
// line per series over the shared categories. A spec with nothing to plot
// still renders: the image is a blank canvas carrying the title, if any.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/chartcrafter/chartcrafter"
)

// Renderer implements chartcrafter.Renderer.
type Renderer struct{}

var _ chartcrafter.Renderer = (*Renderer)(nil)

func New() *Renderer {
	return &Renderer{}
}

type drawable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func (r *Renderer) Render(ctx context.Context, spec json.RawMessage, width, height int) (chartcrafter.Rendering, error) {
	if err := ctx.Err(); err != nil {
		return chartcrafter.Rendering{}, fmt.Errorf("render: %w", err)
	}

	if width <= 0 || height <= 0 {
		return chartcrafter.Rendering{}, fmt.Errorf("render: invalid size %dx%d", width, height)
	}

	// a spec we cannot read draws as an empty chart
	model, err := parseSpec(spec)
	if err != nil {
		model = chartModel{}
	}

	d := build(model, width, height)

	var svg bytes.Buffer
	if err := d.Render(chart.SVG, &svg); err != nil {
		return chartcrafter.Rendering{}, fmt.Errorf("render svg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return chartcrafter.Rendering{}, fmt.Errorf("render: %w", err)
	}

	var png bytes.Buffer
	if err := d.Render(chart.PNG, &png); err != nil {
		return chartcrafter.Rendering{}, fmt.Errorf("render png: %w", err)
	}

	return chartcrafter.Rendering{SVG: svg.String(), PNG: png.Bytes()}, nil
}

func build(m chartModel, width, height int) drawable {
	var d drawable
	switch {
	case len(m.series) == 0:
	case m.series[0].kind == "pie":
		d = buildPie(m, width, height)
	case len(m.series) == 1 && m.series[0].kind == "bar":
		d = buildBar(m, width, height)
	default:
		d = buildLine(m, width, height)
	}

	if d == nil {
		return &emptyChart{title: m.title, width: width, height: height}
	}
	return d
}

// emptyChart is drawn when no series has a usable value. go-chart refuses
// to render a chart without series, so the canvas is painted directly.
type emptyChart struct {
	title         string
	width, height int
}

func (e *emptyChart) Render(rp chart.RendererProvider, w io.Writer) error {
	r, err := rp(e.width, e.height)
	if err != nil {
		return err
	}

	r.SetFillColor(drawing.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(e.width, 0)
	r.LineTo(e.width, e.height)
	r.LineTo(0, e.height)
	r.Close()
	r.Fill()

	if e.title != "" {
		font, err := chart.GetDefaultFont()
		if err != nil {
			return err
		}
		r.SetFont(font)
		r.SetFontColor(drawing.ColorBlack)
		r.SetFontSize(chart.DefaultTitleFontSize)
		tb := r.MeasureText(e.title)
		x := max(0, (e.width-tb.Width())/2)
		r.Text(e.title, x, min(e.height, 40))
	}

	return r.Save(w)
}

func buildPie(m chartModel, width, height int) drawable {
	var values []chart.Value
	total := 0.0

	for i, p := range m.series[0].points {
		if !p.ok || p.value <= 0 {
			continue
		}
		values = append(values, chart.Value{Value: p.value, Label: label(p, m.categories, i)})
		total += p.value
	}

	if total == 0 {
		return nil
	}

	return &chart.PieChart{
		Title:  m.title,
		Width:  width,
		Height: height,
		Values: values,
	}
}

func buildBar(m chartModel, width, height int) drawable {
	var bars []chart.Value
	var values []float64

	for i, p := range m.series[0].points {
		if !p.ok {
			continue
		}
		bars = append(bars, chart.Value{Value: p.value, Label: label(p, m.categories, i)})
		values = append(values, p.value)
	}

	if len(bars) == 0 {
		return nil
	}

	lo, hi := bounds(values)
	lo = math.Min(lo, 0)
	if lo == hi {
		hi = lo + 1
	}

	barWidth := (width - 120) * 6 / (10 * len(bars))
	barWidth = max(4, min(barWidth, 80))

	return &chart.BarChart{
		Title:    m.title,
		Width:    width,
		Height:   height,
		BarWidth: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 50},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
}

func buildLine(m chartModel, width, height int) drawable {
	graph := &chart.Chart{
		Title:  m.title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20},
		},
	}

	var all []float64
	n := len(m.categories)

	for _, s := range m.series {
		var xs, ys []float64
		for i, p := range s.points {
			if !p.ok {
				continue
			}
			xs = append(xs, float64(i))
			ys = append(ys, p.value)
		}
		if len(xs) == 0 {
			continue
		}

		n = max(n, len(s.points))
		all = append(all, ys...)
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    s.name,
			XValues: xs,
			YValues: ys,
		})
	}

	if len(graph.Series) == 0 {
		return nil
	}

	// go-chart refuses zero-width ranges, which a single point or a flat
	// series would produce
	graph.XAxis.Range = &chart.ContinuousRange{Min: 0, Max: math.Max(float64(n-1), 1)}

	lo, hi := bounds(all)
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	graph.YAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}

	if len(m.categories) > 0 {
		for i, c := range m.categories {
			graph.XAxis.Ticks = append(graph.XAxis.Ticks, chart.Tick{Value: float64(i), Label: c})
		}
	}

	if len(graph.Series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(graph)}
	}

	return graph
}

func label(p point, categories []string, i int) string {
	if p.name != "" {
		return p.name
	}
	if i < len(categories) {
		return categories[i]
	}
	return fmt.Sprintf("%d", i+1)
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
