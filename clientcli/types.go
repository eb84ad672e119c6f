package clientcli

import (
	"github.com/chartcrafter/chartcrafter"
)

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	IDs []string
	// Password is the deletion password returned at creation. When empty
	// the configured master key is used.
	Password string
}

// DeleteResult represents the result of deleting a single chart.
type DeleteResult struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// PruneResult summarizes a prune run.
type PruneResult struct {
	Total   int            `json:"total"`
	Expired int            `json:"expired"`
	Deleted int            `json:"deleted"`
	Results []DeleteResult `json:"-"`
}

// ImageResult describes a downloaded chart image.
type ImageResult struct {
	ID        string `json:"id"`
	LocalPath string `json:"local_path"`
	Size      int64  `json:"size_bytes"`
}

// ListResult holds the charts returned by the server.
type ListResult struct {
	Charts []chartcrafter.ChartSummary `json:"charts"`
}

// Expired counts the charts the server reported as expired.
func (r *ListResult) Expired() int {
	n := 0
	for _, c := range r.Charts {
		if c.Status == chartcrafter.StatusExpired {
			n++
		}
	}
	return n
}

// serverError mirrors the JSON error body written by the server.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
