package http

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	PostLimit int           // max POST requests per window
	GetLimit  int           // max GET requests per window
	Window    time.Duration // counter TTL, refreshed on every request
	KeyPrefix string
}

// DefaultRateLimitConfig returns the default limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PostLimit: 30,
		GetLimit:  120,
		Window:    time.Minute,
		KeyPrefix: "chartcrafter:ratelimit:",
	}
}

// RateLimiter is a per-client request counter backed by Redis so that
// several instances share one budget.
type RateLimiter struct {
	rdb     redis.UniversalClient
	cfg     RateLimitConfig
	metrics *Metrics
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRateLimitConfig().KeyPrefix
	}
	return &RateLimiter{rdb: rdb, cfg: cfg}
}

// Handler returns the middleware. POST and GET requests are counted
// separately; other methods pass through. Redis errors fail open.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var limit int
		switch r.Method {
		case http.MethodPost:
			limit = l.cfg.PostLimit
		case http.MethodGet:
			limit = l.cfg.GetLimit
		default:
			next.ServeHTTP(w, r)
			return
		}

		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("%s%s:%s", l.cfg.KeyPrefix, clientIP(r), r.Method)

		// the window starts with the first request: SET NX only attaches a
		// TTL to a fresh key and INCR keeps it, so later hits never extend it
		pipe := l.rdb.TxPipeline()
		pipe.SetNX(r.Context(), key, 0, l.cfg.Window)
		incr := pipe.Incr(r.Context(), key)
		if _, err := pipe.Exec(r.Context()); err != nil {
			slog.Warn("rate limit redis error", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if incr.Val() > int64(limit) {
			l.metrics.rateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(int(l.cfg.Window.Seconds())))
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr, which middleware.RealIP has
// already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
