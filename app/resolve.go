package app

import (
	"sync"

	"github.com/strandly/edgeguard/domain/guard"
	"github.com/strandly/edgeguard/ports"
)

// Resolution carries the normalized caller identity for one request
// (value type).
type Resolution struct {
	Identity string // empty when the caller declared none
	Tier     guard.Tier
	Bypass   bool
}

// Resolver extracts caller identity and tier from declared request values.
// Unrecognized tiers become unknown; the admin bypass token is matched
// against a configured bcrypt hash. Intended for internal testing only -
// deployments must keep the bypass token out of production traffic paths.
type Resolver struct {
	matcher ports.SecretMatcher

	mu             sync.RWMutex
	adminTokenHash []byte
}

// NewResolver creates a resolver.
func NewResolver(matcher ports.SecretMatcher, adminTokenHash []byte) *Resolver {
	return &Resolver{matcher: matcher, adminTokenHash: adminTokenHash}
}

// UpdateAdminToken swaps the admin bypass hash (hot reload).
func (r *Resolver) UpdateAdminToken(hash []byte) {
	r.mu.Lock()
	r.adminTokenHash = hash
	r.mu.Unlock()
}

// Resolve normalizes the declared identity, tier and bypass token.
func (r *Resolver) Resolve(identity, tier, bypassToken string) Resolution {
	return Resolution{
		Identity: identity,
		Tier:     guard.ParseTier(tier),
		Bypass:   r.IsAdmin(bypassToken),
	}
}

// IsAdmin reports whether a token matches the configured bypass secret.
func (r *Resolver) IsAdmin(token string) bool {
	if token == "" {
		return false
	}
	r.mu.RLock()
	hash := r.adminTokenHash
	r.mu.RUnlock()
	return r.matcher.Match(hash, token)
}
