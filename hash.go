package chartcrafter

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLen = 16
	keyLen  = 32
)

var errMalformedHash = errors.New("malformed password hash")

// HashConfig holds argon2id parameters for deletion password hashes.
type HashConfig struct {
	Time    uint32 `mapstructure:"time" validate:"min=1"`
	Memory  uint32 `mapstructure:"memory" validate:"min=8"` // KiB
	Threads uint8  `mapstructure:"threads" validate:"min=1"`
}

// DefaultHashConfig returns the production parameters.
func DefaultHashConfig() HashConfig {
	return HashConfig{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
	}
}

// TestHashConfig returns cheap parameters suitable for tests.
func TestHashConfig() HashConfig {
	return HashConfig{
		Time:    1,
		Memory:  1024,
		Threads: 1,
	}
}

// Hasher derives and verifies argon2id hashes in PHC string format.
type Hasher struct {
	cfg HashConfig
}

func NewHasher(cfg HashConfig) *Hasher {
	return &Hasher{cfg: cfg}
}

// Hash returns an encoded argon2id hash of password with a random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("hash password: salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory, h.cfg.Time, h.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. The parameters stored in
// encoded are used, so hashes survive configuration changes.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}

	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want))) //nolint:gosec // len(want) is bounded by the encoded hash

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
