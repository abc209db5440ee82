// Package fileid derives deterministic document IDs from PDF content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	prefix = "doc:"
	// idBytes is how much of the digest is kept; 16 bytes is plenty to tell uploads apart.
	idBytes = 16
)

// ContentID returns a stable document ID for content.
// Identical bytes always yield the same ID regardless of file name.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:idBytes])
}
