// Package checksum computes the content checksums used to detect chain file
// changes and to guard concurrent rewrites.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether want is the checksum of data. want may be quoted
// like an HTTP entity tag and is compared case-insensitively.
func Matches(data []byte, want string) bool {
	want = strings.Trim(strings.TrimSpace(want), `"`)
	return strings.EqualFold(Sum(data), want)
}
