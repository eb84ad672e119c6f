package render

import "encoding/json"

type Point = point

func ParsePoint(raw string) Point {
	return parsePoint(json.RawMessage(raw))
}

func (p Point) Name() string   { return p.name }
func (p Point) Value() float64   { return p.value }
func (p Point) OK() bool         { return p.ok }

func ParseSummary(raw string) (title string, categories []string, kinds []string, err error) {
	m, err := parseSpec(json.RawMessage(raw))
	if err != nil {
		return "", nil, nil, err
	}
	for _, s := range m.series {
		kinds = append(kinds, s.kind)
	}
	return m.title, m.categories, kinds, nil
}
