// Package redis provides a Redis implementation of the counter store.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strandly/edgeguard/ports"
)

// MinTTL is the floor applied to every write to avoid churn.
const MinTTL = 60 * time.Second

// CounterStore implements ports.CounterStore on Redis. Increment stays
// get-then-put rather than INCRBY so quota behavior is identical across
// drivers; swapping in the atomic primitive here is the documented upgrade
// path if stronger counting is ever required.
type CounterStore struct {
	client *redis.Client
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewCounterStore creates a Redis counter store.
func NewCounterStore(cfg Config) *CounterStore {
	return &CounterStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

// Ping verifies the connection.
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the blob at key, or nil when missing.
func (s *CounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Put stores a blob with a TTL.
func (s *CounterStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, clampTTL(ttl)).Err()
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

// List returns the keys under a prefix via SCAN.
func (s *CounterStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Close releases the client.
func (s *CounterStore) Close() error {
	return s.client.Close()
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
