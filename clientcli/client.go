package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chartcrafter/chartcrafter"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client performs operations against a Chart Crafter server.
type Client struct {
	config     *Config
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock overrides the clock Prune compares expiry times against.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	// Apply defaults
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: &Config{
			Endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
			MasterKey: cfg.MasterKey,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Create posts a new chart and returns the server's answer, including the
// one-time deletion password.
func (c *Client) Create(ctx context.Context, req chartcrafter.CreateRequest) (*chartcrafter.CreateResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/chart", bytes.NewReader(body), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return nil, err
	}

	var result chartcrafter.CreateResult
	if err := decodeResponse(resp, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns every chart on the server. It requires the master key.
func (c *Client) List(ctx context.Context) (*ListResult, error) {
	if err := c.config.RequireMasterKey("list"); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, "/chart", http.NoBody, c.withMasterKey)
	if err != nil {
		return nil, err
	}

	var result ListResult
	if err := decodeResponse(resp, http.StatusOK, &result); err != nil {
		return nil, err
	}
	if result.Charts == nil {
		result.Charts = []chartcrafter.ChartSummary{}
	}
	return &result, nil
}

// Delete deletes one or more charts.
// Continues on error, collecting results for all ids.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.IDs) == 0 {
		return nil, ErrNoIDs
	}
	if opts.Password == "" && c.config.MasterKey == "" {
		return nil, ErrCredentialRequired
	}

	results := make([]DeleteResult, 0, len(opts.IDs))

	for _, id := range opts.IDs {
		// Check context cancellation
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, c.deleteSingle(ctx, id, opts.Password))
	}

	return results, nil
}

// deleteSingle deletes a single chart.
func (c *Client) deleteSingle(ctx context.Context, ref, password string) DeleteResult {
	id, err := ChartID(ref)
	if err != nil {
		return DeleteResult{ID: ref, Err: err}
	}

	resp, err := c.do(ctx, http.MethodDelete, "/chart/"+url.PathEscape(id), http.NoBody, func(r *http.Request) {
		if password != "" {
			r.Header.Set("X-Delete-Password", password)
			return
		}
		c.withMasterKey(r)
	})
	if err != nil {
		return DeleteResult{ID: id, Err: err}
	}

	if err := decodeResponse(resp, http.StatusOK, nil); err != nil {
		return DeleteResult{ID: id, Err: err}
	}

	return DeleteResult{ID: id, Deleted: true}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Prune lists every chart with the master key and deletes those whose
// expiry has passed by the client's clock, or that carry no expiry at all.
// A failed deletion is recorded and the run continues.
func (c *Client) Prune(ctx context.Context) (*PruneResult, error) {
	list, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}

	now := c.now()
	result := &PruneResult{Total: len(list.Charts)}

	for _, chart := range list.Charts {
		if !chart.ExpiresAt.IsZero() && now.Before(chart.ExpiresAt) {
			continue
		}
		result.Expired++

		if err := ctx.Err(); err != nil {
			return result, err
		}

		r := c.deleteSingle(ctx, chart.ID, "")
		r.Name = chart.Name
		if r.Deleted {
			result.Deleted++
		}
		result.Results = append(result.Results, r)
	}

	return result, nil
}

// Status fetches the server status report. A degraded server answers 500
// with a report; both are returned in that case.
func (c *Client) Status(ctx context.Context) (*chartcrafter.StatusReport, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status", http.NoBody, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var report chartcrafter.StatusReport
	if jsonErr := json.Unmarshal(body, &report); jsonErr != nil || report.Status == "" {
		if resp.StatusCode != http.StatusOK {
			return nil, parseServerError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("parse response: %w", errors.Join(jsonErr, errors.New("missing status")))
	}

	if resp.StatusCode != http.StatusOK {
		return &report, parseServerError(resp.StatusCode, body)
	}
	return &report, nil
}

// Image downloads the PNG of a chart. If localPath is "-" the image is
// written to w; otherwise to localPath (default: <id>.png).
func (c *Client) Image(ctx context.Context, ref, localPath string, w io.Writer) (*ImageResult, error) {
	id, err := ChartID(ref)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}

	resp, err := c.do(ctx, http.MethodGet, "/chart/image/"+url.PathEscape(id), http.NoBody, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseServerError(resp.StatusCode, body)
	}

	result := &ImageResult{ID: id, LocalPath: localPath}

	if localPath == "-" {
		n, err := io.Copy(w, resp.Body)
		if err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
		result.Size = n
		return result, nil
	}

	if localPath == "" {
		localPath = id + ".png"
		result.LocalPath = localPath
	}

	// Create parent directories if needed
	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			return nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, err := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	if copyErr != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write file: %w", copyErr)
	}
	if closeErr := file.Close(); closeErr != nil {
		return nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil
}

func (c *Client) withMasterKey(r *http.Request) {
	if c.config.MasterKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.config.MasterKey)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, prepare func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if prepare != nil {
		prepare(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// decodeResponse closes resp, checks the status and decodes the body into
// v when v is non-nil.
func decodeResponse(resp *http.Response, want int, v any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return parseServerError(resp.StatusCode, body)
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// parseServerError extracts the error code and message from a server response.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}

	var se serverError
	if err := json.Unmarshal(body, &se); err == nil {
		apiErr.Code = se.Error
		apiErr.Message = se.Message
	}

	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + " - " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the requested chart does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrUnauthorized is returned when credentials are missing or wrong (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrBadRequest is returned when the server rejects the input (400).
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrRateLimited is returned when the server's rate limit is hit (429).
	ErrRateLimited = &APIError{StatusCode: http.StatusTooManyRequests}
)
