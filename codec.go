package chartcrafter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// recordJSON is the canonical on-disk schema of {id}.json. Field names
// follow the records written by earlier deployments so existing blobs stay
// readable; password is only ever read.
type recordJSON struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Data         json.RawMessage `json:"data"`
	ExpiresIn    string          `json:"expiresIn,omitempty"`
	ExpiryTime   json.RawMessage `json:"expiryTime"`
	CreatedAt    int64           `json:"createdAt,omitempty"`
	PasswordHash string          `json:"passwordHash,omitempty"`
	Password     string          `json:"password,omitempty"`
}

// EncodeRecord serializes a record to JSON. Timestamps are stored as
// milliseconds since the epoch. Data is stored compacted, so a decoded
// record carries the same JSON value but not necessarily the same bytes.
func EncodeRecord(r ChartRecord) ([]byte, error) {
	w := recordJSON{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Data:         r.Data,
		ExpiresIn:    r.ExpiresIn,
		ExpiryTime:   json.RawMessage(fmt.Sprintf("%d", r.ExpiresAt.UnixMilli())),
		PasswordHash: r.PasswordHash,
		Password:     r.LegacyPassword,
	}
	if !r.CreatedAt.IsZero() {
		w.CreatedAt = r.CreatedAt.UnixMilli()
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses a record written by EncodeRecord or by an earlier
// schema. It returns ErrMalformedRecord when the payload is not JSON, has no
// name, or has no numeric expiryTime.
func DecodeRecord(data []byte) (ChartRecord, error) {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return ChartRecord{}, fmt.Errorf("decode record: %w: %w", ErrMalformedRecord, err)
	}

	if w.Name == "" {
		return ChartRecord{}, fmt.Errorf("decode record: %w: missing name", ErrMalformedRecord)
	}

	var expiryMs int64
	raw := bytes.TrimSpace(w.ExpiryTime)
	if len(raw) == 0 || raw[0] == '"' || string(raw) == "null" || json.Unmarshal(raw, &expiryMs) != nil {
		return ChartRecord{}, fmt.Errorf("decode record: %w: expiryTime is not a number", ErrMalformedRecord)
	}

	r := ChartRecord{
		ID:             w.ID,
		Name:           w.Name,
		Description:    w.Description,
		Data:           w.Data,
		ExpiresIn:      w.ExpiresIn,
		ExpiresAt:      time.UnixMilli(expiryMs).UTC(),
		PasswordHash:   w.PasswordHash,
		LegacyPassword: w.Password,
	}
	if w.CreatedAt != 0 {
		r.CreatedAt = time.UnixMilli(w.CreatedAt).UTC()
	}

	return r, nil
}
