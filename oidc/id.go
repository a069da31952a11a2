package oidc

import (
	"fmt"

	"github.com/hashicorp/proconnect/sdk/id"
)

// NewID generates a 32 character hex ID from 16 bytes of crypto/rand output.
// The ID generated is suitable for a state or nonce.
func NewID() (string, error) {
	const op = "NewID"
	v, err := id.New()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %w", op, ErrIDGeneratorFailed, err)
	}
	return v, nil
}
