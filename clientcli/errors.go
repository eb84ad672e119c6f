package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrMasterKeyRequired = errors.New("master key is required")
	ErrConfigRequired    = errors.New("config is required")
	ErrInvalidEndpoint   = errors.New("invalid endpoint URL")
)

// Errors for input validation.
var (
	ErrNoIDs              = errors.New("no chart ids provided")
	ErrEmptyID            = errors.New("chart id is required")
	ErrInvalidChartRef    = errors.New("not a chart id or chart URL")
	ErrCredentialRequired = errors.New("a master key or deletion password is required")
)
