package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	charthttp "github.com/chartcrafter/chartcrafter/http"
)

func newLimiter(t *testing.T, cfg charthttp.RateLimitConfig) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := charthttp.NewRateLimiter(rdb, cfg)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return limiter.Handler(next), mr
}

func request(handler http.Handler, method, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/chart", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Limits(t *testing.T) {
	handler, _ := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 2, GetLimit: 3, Window: time.Minute})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
	}
	rec := request(handler, http.MethodPost, "10.0.0.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// GET has its own budget
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodGet, "10.0.0.1:1000").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, request(handler, http.MethodGet, "10.0.0.1:1000").Code)

	// and so does every client
	assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.2:1000").Code)
}

func TestRateLimiter_KeysExpire(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 1, Window: 30 * time.Second, KeyPrefix: "rl:"})

	require.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
	require.Equal(t, http.StatusTooManyRequests, request(handler, http.MethodPost, "10.0.0.1:1000").Code)

	assert.True(t, mr.Exists("rl:10.0.0.1:POST"))
	assert.Equal(t, 30*time.Second, mr.TTL("rl:10.0.0.1:POST"))

	mr.FastForward(31 * time.Second)
	assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
}

func TestRateLimiter_SteadyClientUnderLimit(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{GetLimit: 3, Window: time.Minute, KeyPrefix: "rl:"})

	// two requests a minute never reach a limit of three
	for i := 0; i < 8; i++ {
		require.Equal(t, http.StatusOK, request(handler, http.MethodGet, "10.0.0.1:1000").Code, "request %d", i+1)
		mr.FastForward(30 * time.Second)
	}
}

func TestRateLimiter_WindowNotExtended(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 5, Window: time.Minute, KeyPrefix: "rl:"})

	require.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
	mr.FastForward(20 * time.Second)
	require.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)

	assert.Equal(t, 40*time.Second, mr.TTL("rl:10.0.0.1:POST"))
}

func TestRateLimiter_OtherMethodsPassThrough(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 1, GetLimit: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodDelete, "10.0.0.1:1000").Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 0, GetLimit: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	handler, mr := newLimiter(t, charthttp.RateLimitConfig{PostLimit: 1, Window: time.Minute})
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "10.0.0.1:1000").Code)
	}
}

func TestRateLimiter_CountsRejections(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	metrics := charthttp.NewMetrics()
	limiter := charthttp.NewRateLimiter(rdb, charthttp.RateLimitConfig{GetLimit: 1, Window: time.Minute})
	router, _ := newRouter(t, charthttp.HandlerConfig{Metrics: metrics, RateLimiter: limiter})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, serve(router, req).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)

	mr.FlushAll()
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chartcrafter_rate_limited_total 1")
}
