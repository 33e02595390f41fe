package keygen

import (
	"crypto/rand"
	"fmt"
)

// Base62 alphabet: 0-9, a-z, A-Z
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ArrayKeyLength is the size of keys attached to ledger list items.
const ArrayKeyLength = 12

// Generate creates a cryptographically secure random Base62 string.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid key length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	key := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			key[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(key), nil
}

// ArrayKey returns a fresh key for a list item reference.
func ArrayKey() (string, error) {
	return Generate(ArrayKeyLength)
}
