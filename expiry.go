package chartcrafter

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// DefaultExpiresIn is used when a create request omits expiresIn.
	DefaultExpiresIn = "1d"

	MinExpiry = time.Hour
	MaxExpiry = 30 * 24 * time.Hour
)

var expiryRegex = regexp.MustCompile(`^(\d+)([hd])$`)

// ParseExpiry parses a duration of the form <digits><unit> where unit is
// h (hours) or d (days). The result must lie within [MinExpiry, MaxExpiry].
//
// Returns ErrInvalidExpiryFormat when the string does not match the grammar
// and ErrExpiryOutOfRange when the value is outside the allowed bounds.
func ParseExpiry(raw string) (time.Duration, error) {
	m := expiryRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, ErrInvalidExpiryFormat
	}

	unit := time.Hour
	if m[2] == "d" {
		unit = 24 * time.Hour
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// only overflow can fail here since the regex guarantees digits
		return 0, ErrExpiryOutOfRange
	}

	if n > int64(MaxExpiry/unit) {
		return 0, ErrExpiryOutOfRange
	}

	d := time.Duration(n) * unit
	if d < MinExpiry {
		return 0, ErrExpiryOutOfRange
	}

	return d, nil
}
