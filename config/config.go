package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/database"
	"github.com/chartcrafter/chartcrafter/gcsstore"
	charthttp "github.com/chartcrafter/chartcrafter/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for chartcrafter.
type Config struct {
	Env       string                  `mapstructure:"env" validate:"required,oneof=dev development prod production"`
	Server    ServerConfig            `mapstructure:"server"`
	Service   ServiceConfig           `mapstructure:"service"`
	Storage   StorageConfig           `mapstructure:"storage"`
	Database  database.Config         `mapstructure:"database"`
	Render    RenderConfig            `mapstructure:"render"`
	Hashing   chartcrafter.HashConfig `mapstructure:"hashing"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	CORS      charthttp.CORSConfig    `mapstructure:"cors"`
	Log       LogConfig               `mapstructure:"log"`
}

// IsProduction reports whether env selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxBodySize     int64         `mapstructure:"max_body_size" validate:"min=1"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"min=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	Metrics         bool          `mapstructure:"metrics"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	MasterKey       string `mapstructure:"master_key"`
	BaseURL         string `mapstructure:"base_url" validate:"required,url"`
	Version         string `mapstructure:"version"`
	CleanupTimeout  int    `mapstructure:"cleanup_timeout" validate:"min=1"`
	ListConcurrency int    `mapstructure:"list_concurrency" validate:"min=1,max=64"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend string          `mapstructure:"backend" validate:"required,oneof=filesystem badger gcs"`
	Path    string          `mapstructure:"path" validate:"required_if=Backend filesystem"`
	Badger  BadgerConfig    `mapstructure:"badger"`
	GCS     gcsstore.Config `mapstructure:"gcs"`
}

// BadgerConfig configures the embedded badger backend.
type BadgerConfig struct {
	Path           string        `mapstructure:"path"`
	InMemory       bool          `mapstructure:"in_memory"`
	SyncWrites     bool          `mapstructure:"sync_writes"`
	GCInterval     time.Duration `mapstructure:"gc_interval" validate:"min=0"`
	GCDiscardRatio float64       `mapstructure:"gc_discard_ratio" validate:"min=0,max=1"`
}

// RenderConfig holds the output image size.
type RenderConfig struct {
	Width  int `mapstructure:"width" validate:"min=1,max=4096"`
	Height int `mapstructure:"height" validate:"min=1,max=4096"`
}

// RateLimitConfig holds Redis backed rate limiting configuration.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisURL  string        `mapstructure:"redis_url" validate:"required_if=Enabled true"`
	PostLimit int           `mapstructure:"post_limit" validate:"min=0"`
	GetLimit  int           `mapstructure:"get_limit" validate:"min=0"`
	Window    time.Duration `mapstructure:"window" validate:"min=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"port":            "server.port",
	"master-key":      "service.master_key",
	"base-url":        "service.base_url",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_body_size", charthttp.DefaultMaxBodySize)
	v.SetDefault("server.request_timeout", charthttp.DefaultRequestTimeout)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics", true)

	v.SetDefault("service.master_key", "")
	v.SetDefault("service.base_url", "http://localhost:3000")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.cleanup_timeout", 30) // seconds
	v.SetDefault("service.list_concurrency", chartcrafter.DefaultListConcurrency)

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.badger.path", "./badger")
	v.SetDefault("storage.badger.in_memory", false)
	v.SetDefault("storage.badger.sync_writes", true)
	v.SetDefault("storage.badger.gc_interval", 5*time.Minute)
	v.SetDefault("storage.badger.gc_discard_ratio", 0.5)
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.gcs.endpoint", "")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "chartcrafter.db")
	v.SetDefault("database.tables.meta_data", "chartcrafter_blobs")

	v.SetDefault("render.width", chartcrafter.DefaultWidth)
	v.SetDefault("render.height", chartcrafter.DefaultHeight)

	hash := chartcrafter.DefaultHashConfig()
	v.SetDefault("hashing.time", hash.Time)
	v.SetDefault("hashing.memory", hash.Memory)
	v.SetDefault("hashing.threads", hash.Threads)

	rl := charthttp.DefaultRateLimitConfig()
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.redis_url", "")
	v.SetDefault("rate_limit.post_limit", rl.PostLimit)
	v.SetDefault("rate_limit.get_limit", rl.GetLimit)
	v.SetDefault("rate_limit.window", rl.Window)
	v.SetDefault("rate_limit.key_prefix", rl.KeyPrefix)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "X-Delete-Password"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("CHARTCRAFTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.validateBackend(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validateBackend checks the settings that depend on the selected backend.
func (c *Config) validateBackend() error {
	switch c.Storage.Backend {
	case "filesystem":
		if err := c.Database.Tables.Validate(); err != nil {
			return err
		}
	case "badger":
		if !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
			return errors.New("storage.badger.path is required unless in_memory is set")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for the gcs backend")
		}
	}
	return nil
}
