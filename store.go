package chartcrafter

import (
	"context"
	"encoding/json"
)

// ObjectStore is the key/value blob storage that holds chart records and
// images. Implementations live in the blobstore, badgerstore and gcsstore
// packages.
//
// All methods accept a context for cancellation and timeout control.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Put stores data under key, replacing any existing blob.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - key: The blob key, e.g. "<id>.json"
	//   - data: Blob content
	//   - contentType: MIME type recorded alongside the blob
	//
	// Returns:
	//   - error: Any storage error
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the content stored under key.
	//
	// Returns:
	//   - []byte: The blob content
	//   - error: ErrNotFound if key doesn't exist, or other storage errors
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob stored under key.
	//
	// Returns:
	//   - error: ErrNotFound if key doesn't exist, or other storage errors
	Delete(ctx context.Context, key string) error

	// List returns every blob whose key starts with prefix, together with
	// the time the blob was last written. An empty prefix lists everything.
	//
	// Implementations should return an empty slice (not nil) when nothing
	// matches.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Renderer turns an opaque chart spec into an SVG document and PNG bytes of
// the given pixel size.
type Renderer interface {
	Render(ctx context.Context, spec json.RawMessage, width, height int) (Rendering, error)
}
