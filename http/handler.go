package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chartcrafter/chartcrafter"
)

const (
	DefaultMaxBodySize    = 1 << 20
	DefaultRequestTimeout = 30 * time.Second

	imageCacheControl = "public, max-age=86400"
)

// Service is the chart lifecycle as seen by the HTTP layer.
// *chartcrafter.ChartService implements it.
type Service interface {
	Create(ctx context.Context, req chartcrafter.CreateRequest) (chartcrafter.CreateResult, error)
	View(ctx context.Context, id, masterKey string) (chartcrafter.View, error)
	Image(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string, creds chartcrafter.Credentials) error
	List(ctx context.Context, creds chartcrafter.Credentials) ([]chartcrafter.ChartSummary, error)
	Status(ctx context.Context) (chartcrafter.StatusReport, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// MaxBodySize caps POST /chart bodies (default: 1 MiB).
	MaxBodySize int64
	// RequestTimeout bounds every request (default: 30s).
	RequestTimeout time.Duration
	// ImageWidth and ImageHeight are advertised in OpenGraph tags.
	ImageWidth  int
	ImageHeight int

	CORS CORSConfig
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *RateLimiter
	// Metrics is optional; nil disables /metrics.
	Metrics *Metrics
	// Logger receives request logs (default: slog.Default()).
	Logger *slog.Logger
	// Now overrides the clock used by the chart page.
	Now func() time.Time
}

// Handler provides HTTP handlers for the chart lifecycle.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ImageWidth <= 0 {
		cfg.ImageWidth = chartcrafter.DefaultWidth
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = chartcrafter.DefaultHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RateLimiter != nil {
		cfg.RateLimiter.metrics = cfg.Metrics
	}

	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with all routes and middleware configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.config.Logger))
	r.Use(middleware.Recoverer)
	if h.config.Metrics != nil {
		r.Use(h.config.Metrics.Middleware)
	}
	r.Use(SecurityHeaders)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.RateLimiter != nil {
		r.Use(h.config.RateLimiter.Handler)
	}

	r.Use(middleware.Timeout(h.config.RequestTimeout))

	r.Route("/chart", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/image/{id}", h.handleImage)
		r.Get("/{id}", h.handleView)
		r.Delete("/{id}", h.handleDelete)
	})

	r.Get("/status", h.handleStatus)

	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics.Handler())
	}

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)

	var req chartcrafter.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				"Request body exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes")
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", "Request body must be a JSON object")
		return
	}

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		HandleError(w, err)
		return
	}

	h.config.Metrics.chartEvent("created")
	_ = WriteJSON(w, http.StatusCreated, result)
}

type listResponse struct {
	Charts []chartcrafter.ChartSummary `json:"charts"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	charts, err := h.service.List(r.Context(), credentials(r))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, listResponse{Charts: charts})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.service.View(r.Context(), id, r.URL.Query().Get("masterKey"))
	if err != nil {
		if errors.Is(err, chartcrafter.ErrNotFound) {
			writeErrorPage(w, http.StatusNotFound)
			return
		}
		slog.Error("view chart", "id", id, "error", err)
		writeErrorPage(w, http.StatusInternalServerError)
		return
	}

	// the page depends on the master key, so shared caches must not keep it
	w.Header().Set("Cache-Control", "no-store")

	if view.State == chartcrafter.ViewExpired {
		renderPage(w, http.StatusOK, "expired", nil)
		return
	}

	renderPage(w, http.StatusOK, "chart", newChartPage(view, h.config.ImageWidth, h.config.ImageHeight, h.config.Now()))
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", chartcrafter.ContentTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", imageCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type deleteResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), credentials(r)); err != nil {
		HandleError(w, err)
		return
	}

	h.config.Metrics.chartEvent("deleted")
	_ = WriteJSON(w, http.StatusOK, deleteResponse{Success: true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Status(r.Context())
	if err != nil {
		slog.Warn("status degraded", "error", err)
		_ = WriteJSON(w, http.StatusInternalServerError, report)
		return
	}

	_ = WriteJSON(w, http.StatusOK, report)
}
