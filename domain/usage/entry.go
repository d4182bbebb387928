// Package usage provides usage telemetry types and key layout.
// All functions are pure - no side effects.
package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/strandly/edgeguard/domain/guard"
)

// Entry is one completed request's outcome (immutable value type).
// Entries are write-once and expire with their day; they are never updated.
// IdentityDigest is a pseudonymous hash - raw identifiers are never stored
// alongside behavioral data.
type Entry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"ts"`
	IdentityDigest string         `json:"identity"`
	Endpoint       string         `json:"endpoint"`
	Tier           guard.Tier     `json:"tier"`
	Feature        guard.Feature  `json:"feature"`
	Priority       guard.Priority `json:"priority"`
	Mode           guard.Mode     `json:"mode"`
	OK             bool           `json:"ok"`
	LatencyMs      int64          `json:"latency_ms"`
	Status         int            `json:"status"`
	CacheHit       bool           `json:"cache_hit"`
	Note           string         `json:"note,omitempty"`
}

// Aggregate dimensions. Each entry increments one rolling per-day counter
// per dimension.
const (
	DimEndpoint = "endpoint"
	DimTier     = "tier"
	DimFeature  = "feature"
)

// LogKey returns the uniquely-keyed raw entry slot under a day namespace.
func LogKey(day, id string) string {
	return fmt.Sprintf("usage:%s:log:%s", day, id)
}

// AggregateKey returns the rolling counter key for one dimension value.
func AggregateKey(day, dimension, value string) string {
	return fmt.Sprintf("usage:%s:%s:%s", day, dimension, value)
}

// AggregateKeys returns the three counter keys an entry increments.
func (e Entry) AggregateKeys(day string) []string {
	return []string{
		AggregateKey(day, DimEndpoint, e.Endpoint),
		AggregateKey(day, DimTier, string(e.Tier)),
		AggregateKey(day, DimFeature, string(e.Feature)),
	}
}

// AggregatePrefix returns the listing prefix for one dimension of a day.
func AggregatePrefix(day, dimension string) string {
	return fmt.Sprintf("usage:%s:%s:", day, dimension)
}

// ParseAggregateValue extracts the dimension value from an aggregate key,
// given the prefix it was listed under. Returns "" for foreign keys.
func ParseAggregateValue(key, prefix string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	return key[len(prefix):]
}

// Summary is the per-day rollup served to operators (value type).
type Summary struct {
	Day        string           `json:"day"`
	ByEndpoint map[string]int64 `json:"by_endpoint"`
	ByTier     map[string]int64 `json:"by_tier"`
	ByFeature  map[string]int64 `json:"by_feature"`
}

// Total sums the endpoint dimension, which counts every entry exactly once.
func (s Summary) Total() int64 {
	var n int64
	for _, v := range s.ByEndpoint {
		n += v
	}
	return n
}
