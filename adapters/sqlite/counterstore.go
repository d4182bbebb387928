package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/strandly/edgeguard/ports"
)

// MinTTL is the floor applied to every write to avoid churn.
const MinTTL = 60 * time.Second

// CounterStore implements ports.CounterStore on a single kv table.
// Expired rows are invisible to readers and reclaimed by a janitor
// (see PurgeExpired); TTL expiry is the reset mechanism, never deletion
// on the request path.
type CounterStore struct {
	db    *DB
	clock ports.Clock
}

// NewCounterStore creates a SQLite counter store.
func NewCounterStore(db *DB, clock ports.Clock) *CounterStore {
	return &CounterStore{db: db, clock: clock}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

// Get returns the live blob at key, or nil when missing or expired.
func (s *CounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv
		WHERE key = ? AND expires_at > ?
	`, key, s.clock.Now().Unix())

	var value []byte
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores a blob with a TTL.
func (s *CounterStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := s.clock.Now().Add(clampTTL(ttl)).Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, value, expires)
	return err
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
// Get-then-put, not a transaction: the approximate semantics are uniform
// across drivers on purpose.
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE key >= ? AND key < ? AND expires_at > ?
	`, prefix, prefix+"\xff", s.clock.Now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PurgeExpired removes expired rows. Called by the janitor, never on the
// request path.
func (s *CounterStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM kv WHERE expires_at <= ?
	`, s.clock.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
