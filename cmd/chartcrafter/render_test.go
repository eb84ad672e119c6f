package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChartSpec(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "create request",
			raw:  `{"name":"n","description":"d","data":{"series":[{"type":"bar","data":[1]}]}}`,
			want: `{"series":[{"type":"bar","data":[1]}]}`,
		},
		{
			name: "bare spec",
			raw:  `{"series":[{"type":"line","data":[1,2]}]}`,
			want: `{"series":[{"type":"line","data":[1,2]}]}`,
		},
		{
			name: "null data",
			raw:  `{"data":null,"series":[]}`,
			want: `{"data":null,"series":[]}`,
		},
		{
			name: "not an object",
			raw:  `[1,2,3]`,
			want: `[1,2,3]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(chartSpec([]byte(tt.raw))))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel(" Warning ").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}
