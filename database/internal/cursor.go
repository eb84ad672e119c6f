// Package internal holds helpers shared by the SQL metadata backends.
package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the decoded position of a keyset-paginated listing. Rows are
// ordered by (created_at, key).
type Cursor struct {
	CreatedAt time.Time
	Key       string
}

// EncodeCursor returns an opaque cursor pointing just after the given row.
func EncodeCursor(createdAt time.Time, key string) string {
	data := createdAt.UTC().Format(time.RFC3339Nano) + "|" + key
	return base64.URLEncoding.EncodeToString([]byte(data))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty cursor
// decodes to the zero Cursor.
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	ts, key, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return Cursor{}, errors.New("decode cursor: invalid format")
	}

	if key == "" {
		return Cursor{}, errors.New("decode cursor: empty key")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid timestamp: %w", err)
	}

	return Cursor{CreatedAt: createdAt, Key: key}, nil
}

// EscapeLikePattern escapes %, _ and \ so a key prefix can be used in a
// LIKE ... ESCAPE '\' clause.
func EscapeLikePattern(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(pattern)
}
