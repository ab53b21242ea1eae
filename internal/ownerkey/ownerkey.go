// Package ownerkey derives canonical owner keys from caller-supplied
// identifiers. The canonical form is the lowercase hex encoding of a SHA-256
// digest, so raw identifiers never reach storage.
package ownerkey

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLength is the length of a canonical owner key in hex characters.
const KeyLength = sha256.Size * 2

// Canonicalize returns the canonical owner key for a raw identifier.
//
// An input that already has the canonical shape (64 lowercase hex characters)
// is passed through unchanged, so clients holding a canonical key can reuse
// it directly. Any other byte sequence is hashed. There are no error
// conditions.
func Canonicalize(raw []byte) string {
	if IsCanonical(string(raw)) {
		return string(raw)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// IsCanonical reports whether s already has the shape of a canonical key.
func IsCanonical(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
