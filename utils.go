package chartcrafter

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	recordSuffix = ".json"
	imageSuffix  = ".png"

	ContentTypeJSON = "application/json"
	ContentTypePNG  = "image/png"
)

var chartIDRegex = regexp.MustCompile(`^\d{8}-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewChartID returns an id of the form YYYYMMDD-<uuid> using the UTC date of now.
func NewChartID(now time.Time) string {
	return now.UTC().Format("20060102") + "-" + uuid.NewString()
}

// IsValidID reports whether id has the shape produced by NewChartID.
// Only valid ids are ever turned into storage keys.
func IsValidID(id string) bool {
	return chartIDRegex.MatchString(id)
}

// RecordKey returns the storage key of the chart record.
func RecordKey(id string) string {
	return id + recordSuffix
}

// ImageKey returns the storage key of the rendered image.
func ImageKey(id string) string {
	return id + imageSuffix
}

// IDFromRecordKey extracts the chart id from a record key. The second return
// value is false for keys that are not record keys.
func IDFromRecordKey(key string) (string, bool) {
	id, ok := strings.CutSuffix(key, recordSuffix)
	if !ok || !IsValidID(id) {
		return "", false
	}
	return id, true
}
