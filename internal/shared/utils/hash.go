package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher produces content digests for plugin sources
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hex digest of data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashFields digests fields in order, separated so that ("ab","c") and
// ("a","bc") differ
func (h *Hasher) HashFields(fields ...string) string {
	return h.Hash([]byte(strings.Join(fields, "\x00")))
}

// Digest is the content digest of a tool: its code and default parameters
func Digest(code, params string) string {
	return DefaultHasher().HashFields(code, params)
}

// ShortDigest truncates a digest for display
func ShortDigest(digest string) string {
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}
