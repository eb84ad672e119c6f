package chartcrafter

import (
	"crypto/rand"
	"fmt"
	"io"
)

// DefaultPasswordLength is the length of generated deletion passwords.
const DefaultPasswordLength = 12

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// rejectAbove is the largest multiple of len(passwordAlphabet) that fits in a byte.
const rejectAbove = 256 - 256%len(passwordAlphabet)

// GeneratePassword returns a random string of the given length drawn
// uniformly from [A-Za-z0-9] using crypto/rand.
func GeneratePassword(length int) (string, error) {
	return generatePassword(rand.Reader, length)
}

func generatePassword(src io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate password: %w: length must be positive", ErrInvalidInput)
	}

	result := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(result) < length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		for _, b := range buf {
			// bytes >= 248 would bias the first 8 symbols
			if int(b) >= rejectAbove {
				continue
			}
			result = append(result, passwordAlphabet[int(b)%len(passwordAlphabet)])
			if len(result) == length {
				break
			}
		}
	}

	return string(result), nil
}
