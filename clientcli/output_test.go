package clientcli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/clientcli"
)

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		formatter := clientcli.NewFormatter(true, false)
		_, ok := formatter.(*clientcli.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		formatter := clientcli.NewFormatter(false, true)
		hf, ok := formatter.(*clientcli.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func createResult() *chartcrafter.CreateResult {
	return &chartcrafter.CreateResult{
		ID:        "20240301-abc",
		URL:       "http://charts.test/chart/20240301-abc",
		Thumbnail: "http://charts.test/chart/image/20240301-abc",
		Password:  "Xy7pQ2rT9mKb",
		SVG:       "<svg></svg>",
		ExpiresAt: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestHumanFormatter_FormatCreate(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatCreate(&buf, createResult()))

		out := buf.String()
		assert.Contains(t, out, "Created: 20240301-abc")
		assert.Contains(t, out, "URL:       http://charts.test/chart/20240301-abc")
		assert.Contains(t, out, "Password:  Xy7pQ2rT9mKb")
		assert.NotContains(t, out, "<svg>")
	})

	t.Run("quiet prints url only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatCreate(&buf, createResult()))
		assert.Equal(t, "http://charts.test/chart/20240301-abc\n", buf.String())
	})
}

func TestHumanFormatter_FormatList(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		result := &clientcli.ListResult{Charts: []chartcrafter.ChartSummary{
			{ID: "a", Name: "Revenue", Status: chartcrafter.StatusActive, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
			{ID: "b", Name: "A very long chart name that keeps going and going forever", Status: chartcrafter.StatusExpired},
		}}

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatList(&buf, result))

		out := buf.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "STATUS")
		assert.Contains(t, out, "Revenue")
		assert.Contains(t, out, "expired")
		assert.Contains(t, out, "...")
		assert.Contains(t, out, "2 chart(s), 1 expired")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatList(&buf, &clientcli.ListResult{}))
		assert.Equal(t, "No charts found\n", buf.String())
	})
}

func TestHumanFormatter_FormatDelete(t *testing.T) {
	results := []clientcli.DeleteResult{
		{ID: "a", Deleted: true},
		{ID: "b", Err: errors.New("server error: 401")},
	}

	t.Run("normal", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatDelete(&buf, results))
		assert.Contains(t, buf.String(), "Deleted: a")
		assert.Contains(t, buf.String(), "Error: b - server error: 401")
	})

	t.Run("quiet keeps errors", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatDelete(&buf, results))
		assert.NotContains(t, buf.String(), "Deleted")
		assert.Contains(t, buf.String(), "Error: b")
	})
}

func TestHumanFormatter_FormatPrune(t *testing.T) {
	t.Run("nothing expired", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatPrune(&buf, &clientcli.PruneResult{Total: 3}))
		assert.Equal(t, "No expired charts (3 checked)\n", buf.String())
	})

	t.Run("tally", func(t *testing.T) {
		result := &clientcli.PruneResult{
			Total:   4,
			Expired: 2,
			Deleted: 1,
			Results: []clientcli.DeleteResult{
				{ID: "a", Name: "Old", Deleted: true},
				{ID: "b", Err: errors.New("boom")},
			},
		}

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatPrune(&buf, result))

		out := buf.String()
		assert.Contains(t, out, "Deleted: a (Old)")
		assert.Contains(t, out, "Error: b - boom")
		assert.Contains(t, out, "Deleted 1 of 2 expired chart(s)")
	})
}

func TestHumanFormatter_FormatStatus(t *testing.T) {
	report := &chartcrafter.StatusReport{
		Status:  "degraded",
		Version: "1.2.0",
		Storage: chartcrafter.StorageStatus{Backend: "badger", State: chartcrafter.StorageDisconnected},
		Uptime:  90,
		Error:   "closed",
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatStatus(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "Status:   degraded")
	assert.Contains(t, out, "Uptime:   1m30s")
	assert.Contains(t, out, "Storage:  badger (disconnected)")
	assert.Contains(t, out, "Error:    closed")
}

func TestHumanFormatter_FormatImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatImage(&buf, &clientcli.ImageResult{ID: "a", LocalPath: "a.png", Size: 2048}))
	assert.Equal(t, "Downloaded: a -> a.png (2.0 KB)\n", buf.String())

	buf.Reset()
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatImage(&buf, &clientcli.ImageResult{ID: "a", LocalPath: "-"}))
	assert.Empty(t, buf.String())
}

func TestJSONFormatter_FormatCreate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatCreate(&buf, createResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Xy7pQ2rT9mKb", got["password"])
	assert.Equal(t, "2024-03-02T12:00:00Z", got["expiresAt"])
}

func TestJSONFormatter_FormatPrune(t *testing.T) {
	result := &clientcli.PruneResult{
		Total:   2,
		Expired: 2,
		Deleted: 1,
		Results: []clientcli.DeleteResult{
			{ID: "a", Deleted: true},
			{ID: "b", Err: errors.New("boom")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatPrune(&buf, result))

	assert.JSONEq(t, `{
		"total": 2,
		"expired": 2,
		"deleted": 1,
		"results": [
			{"id": "a", "deleted": true},
			{"id": "b", "deleted": false, "error": "boom"}
		]
	}`, buf.String())
}

func TestJSONFormatter_FormatDelete(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatDelete(&buf, []clientcli.DeleteResult{{ID: "a", Deleted: true}}))
	assert.JSONEq(t, `{"results":[{"id":"a","deleted":true}]}`, buf.String())
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatError(&buf, errors.New("something went wrong")))
	assert.JSONEq(t, `{"error":"something went wrong"}`, buf.String())
}

func TestFormatProfiles(t *testing.T) {
	profiles := []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:3000", MasterKey: "abcd1234efgh5678"},
		{Name: "prod", Endpoint: "https://charts.example.com"},
	}

	t.Run("human list masks keys", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileList(&buf, profiles, "local", false))

		out := buf.String()
		assert.Contains(t, out, "MASTER KEY")
		assert.Contains(t, out, "* local")
		assert.Contains(t, out, "abcd...5678")
		assert.Contains(t, out, "(not set)")
		assert.NotContains(t, out, "abcd1234efgh5678")
	})

	t.Run("human show with secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileShow(&buf, profiles[0], true, true))
		assert.Contains(t, buf.String(), "Name:       local (default)")
		assert.Contains(t, buf.String(), "Master Key: abcd1234efgh5678")
	})

	t.Run("json list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileList(&buf, profiles, "prod", false))
		assert.JSONEq(t, `{"profiles":[
			{"name":"local","endpoint":"http://localhost:3000","master_key":"abcd...5678","default":false},
			{"name":"prod","endpoint":"https://charts.example.com","master_key":"(not set)","default":true}
		]}`, buf.String())
	})

	t.Run("json show short key", func(t *testing.T) {
		var buf bytes.Buffer
		p := clientcli.Profile{Name: "x", Endpoint: "http://x", MasterKey: "short"}
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileShow(&buf, p, false, false))
		assert.JSONEq(t, `{"name":"x","endpoint":"http://x","master_key":"********","default":false}`, buf.String())
	})
}
