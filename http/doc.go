// Package http exposes the chart service over HTTP.
//
// # Routes
//
//	POST   /chart              create a chart, returns 201 with id, urls and password
//	GET    /chart              list every chart (Bearer master key)
//	GET    /chart/{id}         HTML view page with OpenGraph tags
//	GET    /chart/image/{id}   PNG thumbnail
//	DELETE /chart/{id}         delete (Bearer master key or X-Delete-Password)
//	GET    /status             storage health report
//	GET    /metrics            Prometheus metrics, when enabled
//
// JSON errors share one shape:
//
//	{"error": "not_found", "message": "Chart not found"}
//
// The view page answers with HTML in every case, including a dedicated
// page for expired charts. Appending ?masterKey=... bypasses expiry.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    RateLimiter: http.NewRateLimiter(rdb, http.DefaultRateLimitConfig()),
//	    Metrics:     http.NewMetrics(),
//	}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":3000", handler.Router())
//
// # Middleware
//
// Requests pass through request ids, real IP resolution, structured
// request logging, panic recovery, metrics, security headers, optional
// CORS, the Redis backed rate limiter and a per-request timeout, in that
// order.
package http
