package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/config"
	charthttp "github.com/chartcrafter/chartcrafter/http"
	"github.com/chartcrafter/chartcrafter/render"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the Chart Crafter HTTP server.`,
	RunE:  runServe,
}

var serveAutoMigrate bool

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP server port (env: CHARTCRAFTER_SERVER_PORT)")
	serveCmd.Flags().String("master-key", "", "master key for listing and privileged access (env: CHARTCRAFTER_SERVICE_MASTER_KEY)")
	serveCmd.Flags().String("base-url", "", "public base URL used in chart links (env: CHARTCRAFTER_SERVICE_BASE_URL)")
	serveCmd.Flags().BoolVar(&serveAutoMigrate, "auto-migrate", false, "create the metadata table on startup (filesystem backend)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b, err := openBackend(ctx, cfg, openOptions{migrate: serveAutoMigrate, createDir: true})
	if err != nil {
		return err
	}
	defer b.Close()

	service, err := newService(cfg, b, render.New())
	if err != nil {
		return err
	}

	if cfg.Service.MasterKey == "" {
		slog.Warn("no master key configured; listing and privileged access are disabled")
	}

	handlerConfig := charthttp.HandlerConfig{
		MaxBodySize:    cfg.Server.MaxBodySize,
		RequestTimeout: cfg.Server.RequestTimeout,
		ImageWidth:     cfg.Render.Width,
		ImageHeight:    cfg.Render.Height,
		CORS:           cfg.CORS,
		Logger:         slog.Default(),
	}

	if cfg.Server.Metrics {
		handlerConfig.Metrics = charthttp.NewMetrics()
	}

	if cfg.RateLimit.Enabled {
		rdb, err := newRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		handlerConfig.RateLimiter = charthttp.NewRateLimiter(rdb, charthttp.RateLimitConfig{
			PostLimit: cfg.RateLimit.PostLimit,
			GetLimit:  cfg.RateLimit.GetLimit,
			Window:    cfg.RateLimit.Window,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		})
	}

	handler := charthttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"backend", b.name,
		"base_url", cfg.Service.BaseURL,
		"rate_limit", cfg.RateLimit.Enabled,
		"metrics", cfg.Server.Metrics,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// newRedisClient connects to the rate limiter's Redis. An unreachable Redis
// is logged, not fatal: the limiter fails open.
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unreachable, rate limiting will fail open", "err", err)
	} else {
		slog.Info("connected to redis", "addr", opts.Addr)
	}

	return rdb, nil
}
