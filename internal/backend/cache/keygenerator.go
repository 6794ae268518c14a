package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

const keyPrefix = "verdict:"

// Digest returns the hex encoded SHA-256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Key derives the cache key for a file. Only the digest is used so that
// neither the file name nor its bytes are kept.
func Key(digest string) string {
	return keyPrefix + digest
}
