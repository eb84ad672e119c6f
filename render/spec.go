package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// oneOrMany decodes either a single JSON object or an array of them, which
// is how echarts accepts title, xAxis and series.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}

	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

type chartSpec struct {
	Title  oneOrMany[titleSpec]  `json:"title"`
	XAxis  oneOrMany[axisSpec]   `json:"xAxis"`
	Series oneOrMany[seriesSpec] `json:"series"`
}

type titleSpec struct {
	Text string `json:"text"`
}

type axisSpec struct {
	Data []json.RawMessage `json:"data"`
}

type seriesSpec struct {
	Type string            `json:"type"`
	Name string            `json:"name"`
	Data []json.RawMessage `json:"data"`
}

// point is one data item. Missing values ("-", null) have ok == false.
type point struct {
	name  string
	value float64
	ok    bool
}

type series struct {
	kind   string
	name   string
	points []point
}

type chartModel struct {
	title      string
	categories []string
	series     []series
}

func parseSpec(raw json.RawMessage) (chartModel, error) {
	var spec chartSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return chartModel{}, fmt.Errorf("decode chart spec: %w", err)
	}

	var model chartModel

	if len(spec.Title) > 0 {
		model.title = spec.Title[0].Text
	}

	if len(spec.XAxis) > 0 {
		for _, c := range spec.XAxis[0].Data {
			model.categories = append(model.categories, categoryLabel(c))
		}
	}

	for _, s := range spec.Series {
		parsed := series{kind: s.Type, name: s.Name}
		for _, d := range s.Data {
			parsed.points = append(parsed.points, parsePoint(d))
		}
		model.series = append(model.series, parsed)
	}

	return model, nil
}

func categoryLabel(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
		return categoryLabel(obj.Value)
	}

	return string(bytes.TrimSpace(raw))
}

// parsePoint accepts 12, "12", [x, 12] and {"name": "a", "value": 12}.
func parsePoint(raw json.RawMessage) point {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return point{}
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return point{}
		}
		p := parsePoint(obj.Value)
		p.name = obj.Name
		return p
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil || len(arr) == 0 {
			return point{}
		}
		return parsePoint(arr[len(arr)-1])
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return point{}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return point{}
		}
		return point{value: v, ok: true}
	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return point{}
		}
		return point{value: v, ok: true}
	}
}
