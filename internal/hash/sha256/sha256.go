// Package sha256 digests image prefixes for placeholder signatures.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements placeholder.Hasher using SHA-256.
type Hasher struct {
	limit int
}

// New returns a SHA-256 hasher that digests all input.
func New() *Hasher {
	return &Hasher{}
}

// NewLimited returns a hasher that digests at most n leading bytes. Servers
// that ignore Range headers can return more than was asked for; signatures
// are only comparable over the same prefix length.
func NewLimited(n int) *Hasher {
	return &Hasher{limit: n}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	if h.limit > 0 && len(data) > h.limit {
		data = data[:h.limit]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
