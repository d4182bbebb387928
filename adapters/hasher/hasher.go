// Package hasher provides identity hashing and secret matching.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/strandly/edgeguard/ports"
)

// digestLen truncates hex digests to keep counter keys short while leaving
// collisions negligible for per-day scoping.
const digestLen = 24

// SHA256 produces salted, truncated SHA-256 digests of caller identities.
// Deterministic on purpose: the same caller must map to the same counter
// keys across requests and processes.
type SHA256 struct {
	salt []byte
}

// NewSHA256 creates an identity hasher with a deployment-wide salt.
func NewSHA256(salt string) *SHA256 {
	return &SHA256{salt: []byte(salt)}
}

// Digest returns the pseudonymous digest for an identity.
func (h *SHA256) Digest(identity string) string {
	sum := sha256.Sum256(append(append([]byte{}, h.salt...), identity...))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// Ensure interface compliance.
var _ ports.IdentityHasher = (*SHA256)(nil)

// Bcrypt matches plaintext secrets against bcrypt hashes. Used for the
// admin bypass token so the config file never carries the raw secret.
type Bcrypt struct{}

// Match checks if plaintext matches hash.
func (Bcrypt) Match(hash []byte, plaintext string) bool {
	if len(hash) == 0 || plaintext == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// HashSecret generates a bcrypt hash for a secret (CLI helper).
func HashSecret(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
}

// Ensure interface compliance.
var _ ports.SecretMatcher = Bcrypt{}

// Fake provides plain-equality matching for tests (NOT FOR PRODUCTION).
type Fake struct{}

// Match does simple equality check.
func (Fake) Match(hash []byte, plaintext string) bool {
	return plaintext != "" && string(hash) == plaintext
}

// Ensure interface compliance.
var _ ports.SecretMatcher = Fake{}
