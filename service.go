package chartcrafter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWidth           = 1200
	DefaultHeight          = 630
	DefaultListConcurrency = 8
)

// ServiceConfig holds configuration options for ChartService.
type ServiceConfig struct {
	// MasterKey unlocks listing, privileged viewing and deletion of any
	// chart. Empty disables every master-key path.
	MasterKey string
	// BaseURL prefixes the chart and image URLs returned to callers.
	BaseURL string
	// Backend is the storage backend name reported by Status.
	Backend string
	Version string

	Width           int // Rendered image width (default: 1200)
	Height          int // Rendered image height (default: 630)
	ListConcurrency int // Parallel record reads during List (default: 8)
	Hash            HashConfig

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// ChartService manages the chart lifecycle: creation, viewing, deletion,
// listing and expiry. It holds no per-request state; everything durable lives
// in the ObjectStore.
type ChartService struct {
	store           ObjectStore
	renderer        Renderer
	hasher          *Hasher
	masterKey       string
	baseURL         string
	backend         string
	version         string
	width           int
	height          int
	listConcurrency int
	now             func() time.Time
	startedAt       time.Time
	latest          latestTracker

	deleteAuthorizers []Authorizer
}

func NewChartService(store ObjectStore, renderer Renderer, cfg ServiceConfig) (*ChartService, error) {
	if store == nil {
		return nil, errors.New("new chart service: store is required")
	}
	if renderer == nil {
		return nil, errors.New("new chart service: renderer is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	listConcurrency := cfg.ListConcurrency
	if listConcurrency <= 0 {
		listConcurrency = DefaultListConcurrency
	}

	hashCfg := cfg.Hash
	if hashCfg == (HashConfig{}) {
		hashCfg = DefaultHashConfig()
	}
	hasher := NewHasher(hashCfg)

	return &ChartService{
		store:           store,
		renderer:        renderer,
		hasher:          hasher,
		masterKey:       cfg.MasterKey,
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		backend:         cfg.Backend,
		version:         cfg.Version,
		width:           width,
		height:          height,
		listConcurrency: listConcurrency,
		now:             now,
		startedAt:       now(),
		deleteAuthorizers: []Authorizer{
			MasterKeyAuthorizer{Key: cfg.MasterKey},
			PasswordAuthorizer{Hasher: hasher},
		},
	}, nil
}

// Create validates req, stores the chart record, renders the chart and
// stores the image.
//
// Validation happens before any write and fails with ErrMissingFields,
// ErrInvalidExpiryFormat or ErrExpiryOutOfRange. After validation the record
// write and the render+image write run concurrently. There is no rollback:
// when either side fails the chart may be left with only one of its two
// blobs, which a later Delete or Sweep removes.
//
// Error types returned:
//   - ErrInvalidInput family: validation failures
//   - ErrStorage: a blob could not be written
//   - ErrRender: the renderer failed (never a client error)
func (s *ChartService) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return CreateResult{}, fmt.Errorf("create chart: %w", err)
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Description) == "" || isNullJSON(req.Data) {
		return CreateResult{}, fmt.Errorf("create chart: %w", ErrMissingFields)
	}

	expiresIn := req.ExpiresIn
	if expiresIn == "" {
		expiresIn = DefaultExpiresIn
	}

	ttl, err := ParseExpiry(expiresIn)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create chart: %w", err)
	}

	// millisecond precision matches what the codec persists
	createdAt := time.UnixMilli(s.now().UnixMilli()).UTC()
	id := NewChartID(createdAt)

	password, err := GeneratePassword(DefaultPasswordLength)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create chart: %w: %w", ErrInternal, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create chart: %w: %w", ErrInternal, err)
	}

	record := ChartRecord{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Data:         req.Data,
		ExpiresIn:    expiresIn,
		ExpiresAt:    createdAt.Add(ttl),
		CreatedAt:    createdAt,
		PasswordHash: hash,
	}

	payload, err := EncodeRecord(record)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create chart: %w: %w", ErrInternal, err)
	}

	var rendering Rendering
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if putErr := s.store.Put(gctx, RecordKey(id), payload, ContentTypeJSON); putErr != nil {
			return fmt.Errorf("%w: put record: %w", ErrStorage, putErr)
		}
		return nil
	})

	g.Go(func() error {
		r, renderErr := s.renderer.Render(gctx, req.Data, s.width, s.height)
		if renderErr != nil {
			return fmt.Errorf("%w: %w", ErrRender, renderErr)
		}
		if putErr := s.store.Put(gctx, ImageKey(id), r.PNG, ContentTypePNG); putErr != nil {
			return fmt.Errorf("%w: put image: %w", ErrStorage, putErr)
		}
		rendering = r
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Warn("chart may be partially stored", "id", id, "error", err)
		return CreateResult{}, fmt.Errorf("create chart %s: %w", id, err)
	}

	s.latest.observe(id, createdAt, s.now())

	return CreateResult{
		ID:        id,
		URL:       s.ChartURL(id),
		Thumbnail: s.ImageURL(id),
		Password:  password,
		SVG:       rendering.SVG,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Get returns the chart with the given id without any password material.
func (s *ChartService) Get(ctx context.Context, id string) (Chart, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return Chart{}, fmt.Errorf("get chart: %w", err)
	}
	return s.toChart(record), nil
}

// View resolves what a viewer may see. A matching master key grants access
// regardless of expiry; otherwise the chart is viewable only while
// now < expiresAt. An expired chart is reported through View.State, not as
// an error.
func (s *ChartService) View(ctx context.Context, id, masterKey string) (View, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("view chart: %w", err)
	}

	chart := s.toChart(record)
	privileged := MasterKeyAuthorizer{Key: s.masterKey}.Authorize(Credentials{BearerToken: masterKey}, record) == Grant

	return View{
		Chart:      chart,
		State:      AuthorizeView(chart, s.now(), privileged),
		Privileged: privileged,
	}, nil
}

// AuthorizeView is the pure view decision used by View.
func AuthorizeView(chart Chart, now time.Time, privileged bool) ViewState {
	if privileged || !chart.IsExpired(now) {
		return ViewGranted
	}
	return ViewExpired
}

// Image returns the rendered PNG of a chart.
func (s *ChartService) Image(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}

	if !IsValidID(id) {
		return nil, fmt.Errorf("get image: %w", ErrNotFound)
	}

	data, err := s.store.Get(ctx, ImageKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("get image: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get image: %w: %w", ErrStorage, err)
	}

	return data, nil
}

// Delete removes a chart and its image after authorizing creds.
//
// The master key is checked first, then the deletion password. A record that
// cannot be decoded can still be removed with the master key. Both blobs are
// deleted concurrently; a blob that is already gone counts as deleted.
//
// Error types returned:
//   - ErrNotFound: no record for id
//   - ErrCredentialRequired / ErrInvalidCredential (both ErrUnauthorized)
//   - ErrStorage: a blob could not be deleted; the chart may be partially removed
func (s *ChartService) Delete(ctx context.Context, id string, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}

	record, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrMalformedRecord) {
			return fmt.Errorf("delete chart: %w", err)
		}
		slog.Warn("deleting malformed chart record", "id", id, "error", err)
		record = ChartRecord{ID: id}
	}

	if err := Authorize(creds, record, s.deleteAuthorizers...); err != nil {
		return fmt.Errorf("delete chart %s: %w", id, err)
	}

	if err := s.deleteBlobs(ctx, id); err != nil {
		return fmt.Errorf("delete chart %s: %w", id, err)
	}

	return nil
}

// List returns a summary of every stored chart. It requires the master key.
//
// Records that cannot be read or decoded are skipped. Status is "expired"
// only when now is strictly after expiresAt. CreatedAt is the time the
// store recorded for the record blob.
func (s *ChartService) List(ctx context.Context, creds Credentials) ([]ChartSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}

	if err := Authorize(creds, ChartRecord{}, MasterKeyAuthorizer{Key: s.masterKey}); err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}

	blobs, err := s.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list charts: %w: %w", ErrStorage, err)
	}

	records := recordBlobs(blobs)
	summaries := make([]*ChartSummary, len(records))
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConcurrency)

	for i, blob := range records {
		g.Go(func() error {
			record, loadErr := s.load(gctx, blob.id)
			if loadErr != nil {
				slog.Warn("skipping unreadable chart", "key", blob.Key, "error", loadErr)
				return nil
			}

			status := StatusActive
			if now.After(record.ExpiresAt) {
				status = StatusExpired
			}

			summaries[i] = &ChartSummary{
				ID:        blob.id,
				Name:      record.Name,
				URL:       s.ChartURL(blob.id),
				Thumbnail: s.ImageURL(blob.id),
				CreatedAt: blob.UploadedAt,
				ExpiresAt: record.ExpiresAt,
				Status:    status,
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}

	result := make([]ChartSummary, 0, len(summaries))
	for _, sum := range summaries {
		if sum != nil {
			result = append(result, *sum)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Status reports service health. When the store cannot be reached the
// report is marked degraded and ErrStorage is returned alongside it.
//
// The newest chart is tracked in memory; the store is listed only on the
// first call, after the tracked chart is deleted, and once every
// LatestRescanInterval.
func (s *ChartService) Status(ctx context.Context) (StatusReport, error) {
	now := s.now()
	report := StatusReport{
		Status:    "operational",
		Version:   s.version,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(s.startedAt).Seconds(),
		Storage: StorageStatus{
			Backend: s.backend,
			State:   StorageConnected,
		},
	}

	degrade := func(err error) (StatusReport, error) {
		report.Status = "degraded"
		report.Error = err.Error()
		report.Storage.State = StorageDisconnected
		return report, fmt.Errorf("status: %w: %w", ErrStorage, err)
	}

	if err := s.store.Ping(ctx); err != nil {
		return degrade(err)
	}

	if id, ok := s.latest.current(now); ok {
		report.Storage.LastStoredItem = id
		return report, nil
	}

	blobs, err := s.store.List(ctx, "")
	if err != nil {
		return degrade(err)
	}

	var latest recordBlob
	for _, b := range recordBlobs(blobs) {
		if b.UploadedAt.After(latest.UploadedAt) {
			latest = b
		}
	}
	report.Storage.LastStoredItem = s.latest.seed(latest.id, latest.UploadedAt, now, s.now())
	return report, nil
}

// Sweep deletes every chart that has expired (now >= expiresAt) and every
// record that cannot be decoded. Per-chart failures are counted and the
// sweep continues.
func (s *ChartService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("sweep: %w", err)
	}

	blobs, err := s.store.List(ctx, "")
	if err != nil {
		return result, fmt.Errorf("sweep: %w: %w", ErrStorage, err)
	}

	now := s.now()
	for _, blob := range recordBlobs(blobs) {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("sweep: %w", err)
		}

		result.Scanned++

		record, loadErr := s.load(ctx, blob.id)
		switch {
		case errors.Is(loadErr, ErrNotFound):
			continue
		case errors.Is(loadErr, ErrMalformedRecord):
			slog.Warn("sweeping malformed chart", "id", blob.id, "error", loadErr)
		case loadErr != nil:
			slog.Warn("sweep could not read chart", "id", blob.id, "error", loadErr)
			result.Failed++
			continue
		case now.Before(record.ExpiresAt):
			continue
		}

		if delErr := s.deleteBlobs(ctx, blob.id); delErr != nil {
			slog.Warn("sweep could not delete chart", "id", blob.id, "error", delErr)
			result.Failed++
			continue
		}

		slog.Debug("swept chart", "id", blob.id)
		result.Deleted++
	}

	return result, nil
}

// ChartURL returns the shareable page URL of a chart.
func (s *ChartService) ChartURL(id string) string {
	return s.baseURL + "/chart/" + id
}

// ImageURL returns the image URL of a chart.
func (s *ChartService) ImageURL(id string) string {
	return s.baseURL + "/chart/image/" + id
}

func (s *ChartService) load(ctx context.Context, id string) (ChartRecord, error) {
	if err := ctx.Err(); err != nil {
		return ChartRecord{}, err
	}

	if !IsValidID(id) {
		return ChartRecord{}, ErrNotFound
	}

	data, err := s.store.Get(ctx, RecordKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChartRecord{}, ErrNotFound
		}
		return ChartRecord{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	record, err := DecodeRecord(data)
	if err != nil {
		return ChartRecord{}, err
	}
	record.ID = id

	return record, nil
}

func (s *ChartService) deleteBlobs(ctx context.Context, id string) error {
	var g errgroup.Group

	for _, key := range []string{RecordKey(id), ImageKey(id)} {
		g.Go(func() error {
			err := s.store.Delete(ctx, key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: delete %s: %w", ErrStorage, key, err)
			}
			return nil
		})
	}

	err := g.Wait()
	s.latest.forget(id)
	return err
}

func (s *ChartService) toChart(r ChartRecord) Chart {
	return Chart{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Data:        r.Data,
		ExpiresIn:   r.ExpiresIn,
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		URL:         s.ChartURL(r.ID),
		Thumbnail:   s.ImageURL(r.ID),
	}
}

type recordBlob struct {
	BlobInfo
	id string
}

func recordBlobs(blobs []BlobInfo) []recordBlob {
	out := make([]recordBlob, 0, len(blobs))
	for _, b := range blobs {
		if id, ok := IDFromRecordKey(b.Key); ok {
			out = append(out, recordBlob{BlobInfo: b, id: id})
		}
	}
	return out
}

func isNullJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
