// Package identity maps user email addresses onto the stable hashed
// namespace used to scope blobs and metadata rows. The hash is truncated to
// 16 hex characters to keep blob paths short; the collision probability at
// that width is negligible for the expected user population.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/babelscrib/babelscrib/internal/common"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// NormalizeEmail is the canonical form an email takes before hashing or
// storage: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Hash returns the identity for an email address. The email is normalized
// first, so case and whitespace variants map to the same identity.
func Hash(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", common.ErrorInvalidEmail
	}

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:HashLength], nil
}

// SanitizeFilename strips path separators so a filename cannot escape the
// owner's prefix.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}

// BlobPath returns the namespaced blob path "{hash}/{filename}" for an
// email and original filename.
func BlobPath(email, filename string) (string, error) {
	h, err := Hash(email)
	if err != nil {
		return "", err
	}
	return h + "/" + SanitizeFilename(filename), nil
}

// Prefix returns the list prefix that selects all blobs owned by hash.
func Prefix(hash string) string {
	return hash + "/"
}

// Owns reports whether blobName lives under the identity's prefix.
func Owns(hash, blobName string) bool {
	return strings.HasPrefix(blobName, Prefix(hash))
}

// StripPrefix removes the identity prefix from a namespaced blob name,
// returning the plain filename the translation job should see.
func StripPrefix(hash, blobName string) string {
	return strings.TrimPrefix(blobName, Prefix(hash))
}
