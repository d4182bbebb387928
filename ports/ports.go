// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/strandly/edgeguard/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// IdentityHasher produces a stable pseudonymous digest of a caller identity.
// Raw identifiers must never reach the counter store; only digests do.
type IdentityHasher interface {
	Digest(identity string) string
}

// SecretMatcher compares a plaintext secret against a stored hash.
type SecretMatcher interface {
	Match(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Counter Store Port
// -----------------------------------------------------------------------------

// CounterStore wraps a key-value store with get/put-with-TTL semantics.
//
// Counters are day-scoped and reset through TTL expiry, never explicit
// deletion. Increment is implemented get-then-put and is explicitly
// NON-ATOMIC: concurrent writers can lose increments, so callers must treat
// returned values as a lower bound. This interface is the single swap point
// for a stronger primitive (e.g. Redis INCRBY) should one ever be needed.
type CounterStore interface {
	// GetInt returns the integer value at key, or 0 when the key is
	// missing or unparseable. An error indicates a store I/O failure.
	GetInt(ctx context.Context, key string) (int64, error)

	// PutInt stores an integer value with a TTL. Implementations clamp
	// the TTL to a 60 second minimum to avoid churn.
	PutInt(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Increment adds delta to the counter at key and returns the new
	// value. Implemented as get-then-put; not atomic.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Put stores an opaque blob with a TTL (raw usage log entries).
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the blob at key, or nil when missing.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns the keys currently live under a prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Telemetry Port
// -----------------------------------------------------------------------------

// UsageRecorder accepts usage entries for async processing.
type UsageRecorder interface {
	// Record queues a completed request's outcome. The raw identity is
	// hashed before anything reaches the store. This must be
	// non-blocking and must never surface an error to the caller:
	// logging can never break the feature path.
	Record(identity string, e usage.Entry)

	// Flush forces immediate processing of queued entries.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining entries.
	Close() error
}
