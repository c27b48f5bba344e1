// Package sha256 names archived documents by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Hasher implements gazette.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data. Empty input is rejected since
// it can never be a valid document.
func (h *Hasher) Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("hash: empty document")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
