package chartcrafter

import (
	"encoding/json"
	"time"
)

// ChartRecord is the persisted unit stored as {id}.json.
type ChartRecord struct {
	ID           string
	Name         string
	Description  string
	Data         json.RawMessage
	ExpiresIn    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	PasswordHash string

	// LegacyPassword holds the plaintext password of records written before
	// hashing was introduced. New records never set it.
	LegacyPassword string
}

// Chart is a ChartRecord without any password material.
type Chart struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	ExpiresIn   string          `json:"expiresIn"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	URL         string          `json:"url"`
	Thumbnail   string          `json:"thumbnail"`
}

// IsExpired reports whether the chart is no longer viewable at now.
func (c Chart) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type CreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	ExpiresIn   string          `json:"expiresIn,omitempty"`
}

// CreateResult is returned once to the creator. Password is never
// retrievable again.
type CreateResult struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail"`
	Password  string    `json:"password"`
	SVG       string    `json:"svg,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ChartStatus string

const (
	StatusActive  ChartStatus = "active"
	StatusExpired ChartStatus = "expired"
)

// ChartSummary is one entry of the master-key listing.
type ChartSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	URL       string      `json:"url"`
	Thumbnail string      `json:"thumbnail"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Status    ChartStatus `json:"status"`
}

type ViewState string

const (
	ViewGranted ViewState = "granted"
	ViewExpired ViewState = "expired"
)

type View struct {
	Chart      Chart
	State      ViewState
	Privileged bool
}

// Credentials carries what a caller presented. Either field may be empty.
type Credentials struct {
	BearerToken string
	Password    string
}

// BlobInfo describes a stored blob as reported by ObjectStore.List.
type BlobInfo struct {
	Key        string
	UploadedAt time.Time
}

// Rendering is the output of a Renderer.
type Rendering struct {
	SVG string
	PNG []byte
}

type StorageState string

const (
	StorageConnected    StorageState = "connected"
	StorageDisconnected StorageState = "disconnected"
)

type StorageStatus struct {
	Backend        string       `json:"backend"`
	State          StorageState `json:"state"`
	LastStoredItem string       `json:"lastStoredItem,omitempty"`
}

type StatusReport struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Storage   StorageStatus `json:"storage"`
	Uptime    float64       `json:"uptime"`
	Error     string        `json:"error,omitempty"`
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}
