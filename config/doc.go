// Package config provides configuration loading and validation for chartcrafter.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (CHARTCRAFTER_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with CHARTCRAFTER_ prefix:
//   - server.port → CHARTCRAFTER_SERVER_PORT
//   - service.master_key → CHARTCRAFTER_SERVICE_MASTER_KEY
//   - storage.gcs.bucket → CHARTCRAFTER_STORAGE_GCS_BUCKET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Env: dev or prod, selects the log format
//   - Server: port, body limit, timeouts and the /metrics switch
//   - Service: master key, public base URL, version and cleanup settings
//   - Storage: backend (filesystem, badger, gcs) and per-backend settings
//   - Database: metadata index for the filesystem backend
//   - Render: image width and height
//   - Hashing: argon2id parameters for deletion passwords
//   - RateLimit: Redis backed per-client limits
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
package config
