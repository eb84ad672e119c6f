package clientcli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/clientcli"
)

const testMasterKey = "master-secret-key"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, server *httptest.Server, masterKey string) *clientcli.Client {
	t.Helper()
	client, err := clientcli.New(
		&clientcli.Config{Endpoint: server.URL, MasterKey: masterKey},
		clientcli.WithHTTPClient(server.Client()),
		clientcli.WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client, err := clientcli.New(nil)
		assert.ErrorIs(t, err, clientcli.ErrConfigRequired)
		assert.Nil(t, client)
	})

	t.Run("empty endpoint uses default", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{Endpoint: "charts.example.com"})
		assert.ErrorIs(t, err, clientcli.ErrInvalidEndpoint)
		assert.Nil(t, client)
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			writeJSON(w, http.StatusOK, chartcrafter.StatusReport{Status: "operational"})
		}))
		defer server.Close()

		client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL + "/"}, clientcli.WithTimeout(time.Second))
		require.NoError(t, err)

		_, err = client.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/status", gotPath)
	})
}

func TestClient_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chart", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Empty(t, r.Header.Get("Authorization"))

			var req chartcrafter.CreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Revenue", req.Name)
			assert.Equal(t, "1d", req.ExpiresIn)
			assert.JSONEq(t, `{"type":"bar"}`, string(req.Data))

			writeJSON(w, http.StatusCreated, chartcrafter.CreateResult{
				ID:        "20240301-abc",
				URL:       "http://charts.test/chart/20240301-abc",
				Thumbnail: "http://charts.test/chart/image/20240301-abc",
				Password:  "Xy7pQ2rT9mKb",
				ExpiresAt: testNow.Add(24 * time.Hour),
			})
		}))
		defer server.Close()

		client := newClient(t, server, "")
		result, err := client.Create(context.Background(), chartcrafter.CreateRequest{
			Name:      "Revenue",
			Data:      json.RawMessage(`{"type":"bar"}`),
			ExpiresIn: "1d",
		})
		require.NoError(t, err)
		assert.Equal(t, "20240301-abc", result.ID)
		assert.Equal(t, "Xy7pQ2rT9mKb", result.Password)
		assert.True(t, result.ExpiresAt.Equal(testNow.Add(24*time.Hour)))
	})

	t.Run("validation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "expiry_out_of_range",
				"message": "Expiry must be between 1 hour and 30 days",
			})
		}))
		defer server.Close()

		client := newClient(t, server, "")
		result, err := client.Create(context.Background(), chartcrafter.CreateRequest{
			Name:      "x",
			Data:      json.RawMessage(`{}`),
			ExpiresIn: "90d",
		})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, clientcli.ErrBadRequest)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "expiry_out_of_range", apiErr.Code)
		assert.Contains(t, apiErr.Error(), "Expiry must be between")
	})
}

func TestClient_List(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/chart", r.URL.Path)
			assert.Equal(t, "Bearer "+testMasterKey, r.Header.Get("Authorization"))

			writeJSON(w, http.StatusOK, map[string]any{"charts": []chartcrafter.ChartSummary{
				{ID: "a", Name: "A", Status: chartcrafter.StatusActive, ExpiresAt: testNow.Add(time.Hour)},
				{ID: "b", Name: "B", Status: chartcrafter.StatusExpired, ExpiresAt: testNow.Add(-time.Hour)},
			}})
		}))
		defer server.Close()

		client := newClient(t, server, testMasterKey)
		result, err := client.List(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Charts, 2)
		assert.Equal(t, "a", result.Charts[0].ID)
		assert.Equal(t, 1, result.Expired())
	})

	t.Run("null charts becomes empty", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"charts": nil})
		}))
		defer server.Close()

		result, err := newClient(t, server, testMasterKey).List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, result.Charts)
		assert.Empty(t, result.Charts)
	})

	t.Run("no master key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("server should not be called")
		}))
		defer server.Close()

		_, err := newClient(t, server, "").List(context.Background())
		assert.ErrorIs(t, err, clientcli.ErrMasterKeyRequired)
	})

	t.Run("wrong master key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "Invalid master key"})
		}))
		defer server.Close()

		_, err := newClient(t, server, "wrong").List(context.Background())
		assert.ErrorIs(t, err, clientcli.ErrUnauthorized)
	})
}

func TestClient_Delete(t *testing.T) {
	t.Run("with master key", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "Bearer "+testMasterKey, r.Header.Get("Authorization"))
			assert.Empty(t, r.Header.Get("X-Delete-Password"))
			paths = append(paths, r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}))
		defer server.Close()

		results, err := newClient(t, server, testMasterKey).Delete(context.Background(), clientcli.DeleteOptions{
			IDs: []string{"a", "b"},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].Deleted)
		assert.True(t, results[1].Deleted)
		assert.False(t, clientcli.HasDeleteErrors(results))
		assert.Equal(t, []string{"/chart/a", "/chart/b"}, paths)
	})

	t.Run("password takes precedence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Xy7pQ2rT9mKb", r.Header.Get("X-Delete-Password"))
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}))
		defer server.Close()

		results, err := newClient(t, server, testMasterKey).Delete(context.Background(), clientcli.DeleteOptions{
			IDs:      []string{"a"},
			Password: "Xy7pQ2rT9mKb",
		})
		require.NoError(t, err)
		assert.True(t, results[0].Deleted)
	})

	t.Run("accepts chart urls", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}))
		defer server.Close()

		results, err := newClient(t, server, testMasterKey).Delete(context.Background(), clientcli.DeleteOptions{
			IDs: []string{server.URL + "/chart/abc"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Deleted)
		assert.Equal(t, "abc", results[0].ID)
		assert.Equal(t, "/chart/abc", gotPath)
	})

	t.Run("continues on error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/chart/missing" {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "Chart not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}))
		defer server.Close()

		results, err := newClient(t, server, testMasterKey).Delete(context.Background(), clientcli.DeleteOptions{
			IDs: []string{"missing", "", "b"},
		})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.ErrorIs(t, results[0].Err, clientcli.ErrNotFound)
		assert.ErrorIs(t, results[1].Err, clientcli.ErrEmptyID)
		assert.True(t, results[2].Deleted)
		assert.True(t, clientcli.HasDeleteErrors(results))
	})

	t.Run("no ids", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{MasterKey: testMasterKey})
		require.NoError(t, err)

		_, err = client.Delete(context.Background(), clientcli.DeleteOptions{})
		assert.ErrorIs(t, err, clientcli.ErrNoIDs)
	})

	t.Run("no credentials", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.Delete(context.Background(), clientcli.DeleteOptions{IDs: []string{"a"}})
		assert.ErrorIs(t, err, clientcli.ErrCredentialRequired)
	})

	t.Run("context canceled", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{MasterKey: testMasterKey})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := client.Delete(ctx, clientcli.DeleteOptions{IDs: []string{"a"}})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, results)
	})
}

func TestClient_Prune(t *testing.T) {
	charts := []chartcrafter.ChartSummary{
		{ID: "past", Name: "Old", ExpiresAt: testNow.Add(-time.Minute), Status: chartcrafter.StatusExpired},
		{ID: "boundary", Name: "Edge", ExpiresAt: testNow, Status: chartcrafter.StatusActive},
		{ID: "future", Name: "New", ExpiresAt: testNow.Add(time.Hour), Status: chartcrafter.StatusActive},
		{ID: "noexpiry", Name: "Broken"},
		{ID: "failing", Name: "Stuck", ExpiresAt: testNow.Add(-time.Hour), Status: chartcrafter.StatusExpired},
	}

	var mu sync.Mutex
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testMasterKey, r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/chart":
			writeJSON(w, http.StatusOK, map[string]any{"charts": charts})
		case r.Method == http.MethodDelete && r.URL.Path == "/chart/failing":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": "Internal server error"})
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	result, err := newClient(t, server, testMasterKey).Prune(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.Expired)
	assert.Equal(t, 3, result.Deleted)
	assert.Equal(t, []string{"/chart/past", "/chart/boundary", "/chart/noexpiry"}, deleted)

	require.Len(t, result.Results, 4)
	assert.Equal(t, "Old", result.Results[0].Name)
	assert.Equal(t, "failing", result.Results[3].ID)
	assert.Error(t, result.Results[3].Err)
}

func TestClient_Prune_RequiresMasterKey(t *testing.T) {
	client, err := clientcli.New(&clientcli.Config{})
	require.NoError(t, err)

	_, err = client.Prune(context.Background())
	assert.ErrorIs(t, err, clientcli.ErrMasterKeyRequired)
}

func TestClient_Status(t *testing.T) {
	t.Run("operational", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, chartcrafter.StatusReport{
				Status:  "operational",
				Version: "1.2.0",
				Storage: chartcrafter.StorageStatus{Backend: "filesystem", State: chartcrafter.StorageConnected},
				Uptime:  42,
			})
		}))
		defer server.Close()

		report, err := newClient(t, server, "").Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "operational", report.Status)
		assert.Equal(t, chartcrafter.StorageConnected, report.Storage.State)
	})

	t.Run("degraded returns report and error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, chartcrafter.StatusReport{
				Status:  "degraded",
				Storage: chartcrafter.StorageStatus{Backend: "gcs", State: chartcrafter.StorageDisconnected},
				Error:   "bucket unreachable",
			})
		}))
		defer server.Close()

		report, err := newClient(t, server, "").Status(context.Background())
		require.Error(t, err)
		require.NotNil(t, report)
		assert.Equal(t, "degraded", report.Status)
		assert.Equal(t, "bucket unreachable", report.Error)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	})

	t.Run("non json error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer server.Close()

		report, err := newClient(t, server, "").Status(context.Background())
		assert.Nil(t, report)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Contains(t, apiErr.Error(), "bad gateway")
	})
}

func TestClient_Image(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chart/image/abc" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "Chart not found"})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	client := newClient(t, server, "")

	t.Run("to file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "out", "chart.png")

		result, err := client.Image(context.Background(), "abc", dst, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, int64(len(png)), result.Size)
		assert.Equal(t, dst, result.LocalPath)

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, png, data)
	})

	t.Run("default path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		result, err := client.Image(context.Background(), "abc", "", io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "abc.png", result.LocalPath)

		_, err = os.Stat("abc.png")
		assert.NoError(t, err)
	})

	t.Run("to writer", func(t *testing.T) {
		var buf bytes.Buffer

		result, err := client.Image(context.Background(), "abc", "-", &buf)
		require.NoError(t, err)
		assert.Equal(t, png, buf.Bytes())
		assert.Equal(t, "-", result.LocalPath)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.Image(context.Background(), "nope", "-", io.Discard)
		assert.True(t, errors.Is(err, clientcli.ErrNotFound))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := client.Image(context.Background(), "", "-", io.Discard)
		assert.ErrorIs(t, err, clientcli.ErrEmptyID)
	})
}

func TestAPIError(t *testing.T) {
	err := &clientcli.APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "Chart not found"}

	assert.True(t, err.IsNotFound())
	assert.ErrorIs(t, err, clientcli.ErrNotFound)
	assert.NotErrorIs(t, err, clientcli.ErrUnauthorized)
	assert.Equal(t, "server error: 404 not_found - Chart not found", err.Error())

	raw := &clientcli.APIError{StatusCode: http.StatusBadGateway, Body: "upstream"}
	assert.Equal(t, "server error: 502 - upstream", raw.Error())
}
