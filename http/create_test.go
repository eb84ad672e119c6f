package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/badgerstore"
	charthttp "github.com/chartcrafter/chartcrafter/http"
	"github.com/chartcrafter/chartcrafter/render"
)

// newLiveRouter wires the handler to a real service, renderer and an
// in-memory badger store.
func newLiveRouter(t *testing.T) (http.Handler, *badgerstore.Store) {
	t.Helper()

	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	service, err := chartcrafter.NewChartService(store, render.New(), chartcrafter.ServiceConfig{
		BaseURL: "https://charts.example.com",
		Backend: "badger",
		Hash:    chartcrafter.TestHashConfig(),
		Now:     func() time.Time { return testNow },
	})
	require.NoError(t, err)

	cfg := charthttp.HandlerConfig{Now: func() time.Time { return testNow }}
	return charthttp.NewHandler(&cfg, service).Router(), store
}

func TestHandler_Create_ChartWithNothingToPlot(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty object", `{}`},
		{"title only", `{"title":{"text":"x"}}`},
		{"empty series", `{"series":[]}`},
		{"pie of zeros", `{"series":[{"type":"pie","data":[0,0]}]}`},
		{"unreadable series", `{"series":"line"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newLiveRouter(t)

			body := `{"name":"Empty","description":"nothing yet","data":` + tt.data + `}`
			rec := serve(router, httptest.NewRequest(http.MethodPost, "/chart", strings.NewReader(body)))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			id, _ := got["id"].(string)
			require.NotEmpty(t, id)
			assert.True(t, strings.HasPrefix(strings.TrimSpace(got["svg"].(string)), "<svg"))

			ctx := context.Background()
			_, err := store.Get(ctx, chartcrafter.RecordKey(id))
			assert.NoError(t, err, "record stored")
			_, err = store.Get(ctx, chartcrafter.ImageKey(id))
			assert.NoError(t, err, "image stored")
		})
	}
}

func TestHandler_Create_RejectedBeforeAnyWrite(t *testing.T) {
	router, store := newLiveRouter(t)

	body := `{"name":"Sales","description":"Q1","data":{"series":[]},"expiresIn":"90d"}`
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/chart", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	blobs, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, blobs)
}
