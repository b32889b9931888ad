// Package checksum computes the page digests recorded in the generated-file
// manifest. A page whose digest matches its manifest row is exactly what the
// generator last wrote.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for rendered page text.
func String(s string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}

// Reader digests everything r yields.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Matches reports whether data digests to sum. An empty sum, meaning no
// manifest row, never matches.
func Matches(data []byte, sum string) bool {
	return sum != "" && Sum(data) == sum
}
