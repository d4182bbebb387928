// Package memory provides an in-memory implementation of the counter store.
package memory

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/strandly/edgeguard/ports"
)

// MinTTL is the floor applied to every write to avoid churn from
// near-zero expirations.
const MinTTL = 60 * time.Second

type entry struct {
	value     []byte
	expiresAt time.Time
}

// counterShard is a single shard of the counter store.
type counterShard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// CounterStore is a sharded in-memory implementation of ports.CounterStore.
// Sharding reduces lock contention for high request throughput. Expiry is
// lazy: a read past the deadline behaves as a miss, and a background
// sweeper reclaims memory.
type CounterStore struct {
	shards    []*counterShard
	numShards int
	clock     ports.Clock
	sweep     *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// CounterStoreConfig configures the store.
type CounterStoreConfig struct {
	NumShards     int           // default: 32
	SweepInterval time.Duration // default: 5m; 0 disables the sweeper for tests
	Clock         ports.Clock   // required
}

// NewCounterStore creates a new sharded in-memory counter store.
func NewCounterStore(cfg CounterStoreConfig) *CounterStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}

	s := &CounterStore{
		shards:    make([]*counterShard, cfg.NumShards),
		numShards: cfg.NumShards,
		clock:     cfg.Clock,
		done:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &counterShard{entries: make(map[string]entry)}
	}

	if cfg.SweepInterval > 0 {
		s.sweep = time.NewTicker(cfg.SweepInterval)
		go s.sweepLoop()
	}

	return s
}

func (s *CounterStore) getShard(key string) *counterShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

// Get returns the live blob at key, or nil when missing or expired.
func (s *CounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	shard := s.getShard(key)
	shard.mu.RLock()
	e, ok := shard.entries[key]
	shard.mu.RUnlock()

	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return nil, nil
	}
	return e.value, nil
}

// Put stores a blob with a TTL.
func (s *CounterStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	shard := s.getShard(key)
	shard.mu.Lock()
	shard.entries[key] = entry{
		value:     value,
		expiresAt: s.clock.Now().Add(clampTTL(ttl)),
	}
	shard.mu.Unlock()
	return nil
}

// GetInt returns the integer at key, defaulting to 0 on missing or
// unparseable values.
func (s *CounterStore) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := s.Get(ctx, key)
	if err != nil || raw == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// PutInt stores an integer with a TTL.
func (s *CounterStore) PutInt(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return s.Put(ctx, key, []byte(strconv.FormatInt(value, 10)), ttl)
}

// Increment adds delta to the counter at key and returns the new value.
// Get-then-put: concurrent callers can lose increments. The shard lock is
// deliberately NOT held across the read-modify-write so this adapter keeps
// the same approximate semantics as the distributed drivers.
func (s *CounterStore) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	current, err := s.GetInt(ctx, key)
	if err != nil {
		return 0, err
	}
	next := current + delta
	if err := s.PutInt(ctx, key, next, ttl); err != nil {
		return 0, err
	}
	return next, nil
}

// List returns the live keys under a prefix.
func (s *CounterStore) List(ctx context.Context, prefix string) ([]string, error) {
	now := s.clock.Now()
	var keys []string
	for _, shard := range s.shards {
		shard.mu.RLock()
		for k, e := range shard.entries {
			if strings.HasPrefix(k, prefix) && now.Before(e.expiresAt) {
				keys = append(keys, k)
			}
		}
		shard.mu.RUnlock()
	}
	return keys, nil
}

// Clear removes all state (for testing).
func (s *CounterStore) Clear() {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.entries = make(map[string]entry)
		shard.mu.Unlock()
	}
}

// Len returns the number of stored entries, expired included (for testing).
func (s *CounterStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

func (s *CounterStore) sweepLoop() {
	for {
		select {
		case <-s.sweep.C:
			s.doSweep()
		case <-s.done:
			return
		}
	}
}

func (s *CounterStore) doSweep() {
	now := s.clock.Now()
	for _, shard := range s.shards {
		shard.mu.Lock()
		for k, e := range shard.entries {
			if !now.Before(e.expiresAt) {
				delete(shard.entries, k)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the sweeper goroutine.
func (s *CounterStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.sweep != nil {
			s.sweep.Stop()
		}
	})
	return nil
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
