package id

import (
	"encoding/hex"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultByteLength is the number of random bytes used by New. The hex
// encoding of a New value is twice as long.
const DefaultByteLength = 16

// New returns DefaultByteLength bytes read from crypto/rand, hex encoded.
func New() (string, error) {
	return NewWithLength(DefaultByteLength)
}

// NewWithLength returns n bytes read from crypto/rand, hex encoded.
func NewWithLength(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("byte length must be greater than zero: %d", n)
	}
	b, err := uuid.GenerateRandomBytes(n)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
