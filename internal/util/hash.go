package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the hex-encoded SHA-256 of the payload, used to
// correlate audit rows without storing request bodies.
func HashBytes(input []byte) string {
	h := sha256.Sum256(input)
	return hex.EncodeToString(h[:])
}
