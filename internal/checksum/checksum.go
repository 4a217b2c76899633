// Package checksum computes the SHA-256 trailer that guards persisted snapshots.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Size is the length in bytes of a digest.
const Size = sha256.Size

// Digest returns the raw SHA-256 digest of data.
func Digest(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

// Verify reports whether want is the digest of data.
func Verify(data, want []byte) bool {
	got := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

// Hex returns the hex-encoded digest of data, used in log lines.
func Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
