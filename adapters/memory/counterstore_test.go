package memory

import (
	"context"
	"testing"
	"time"

	"github.com/strandly/edgeguard/adapters/clock"
)

func newTestStore(t *testing.T) (*CounterStore, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	s := NewCounterStore(CounterStoreConfig{Clock: fc})
	t.Cleanup(func() { s.Close() })
	return s, fc
}

func TestCounterStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.PutInt(ctx, "k", 5, time.Hour); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	got, err := s.GetInt(ctx, "k")
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if got != 5 {
		t.Errorf("expected 5, got %d", got)
	}

	s.Clear()
	got, err = s.GetInt(ctx, "k")
	if err != nil || got != 0 {
		t.Errorf("expected 0 after clear, got %d err=%v", got, err)
	}
}

func TestCounterStore_MissingDefaultsToZero(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.GetInt(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0 for missing key, got %d", got)
	}
}

func TestCounterStore_UnparseableDefaultsToZero(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("not-a-number"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.GetInt(ctx, "k")
	if err != nil || got != 0 {
		t.Errorf("expected 0 for unparseable value, got %d err=%v", got, err)
	}
}

func TestCounterStore_TTLExpiry(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	if err := s.PutInt(ctx, "k", 7, 2*time.Minute); err != nil {
		t.Fatalf("PutInt: %v", err)
	}

	fc.Advance(time.Minute)
	if got, _ := s.GetInt(ctx, "k"); got != 7 {
		t.Errorf("expected 7 before expiry, got %d", got)
	}

	fc.Advance(2 * time.Minute)
	if got, _ := s.GetInt(ctx, "k"); got != 0 {
		t.Errorf("expected 0 after expiry, got %d", got)
	}
}

func TestCounterStore_MinTTLClamp(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	// A 1s TTL is clamped to the 60s floor.
	if err := s.PutInt(ctx, "k", 1, time.Second); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	fc.Advance(30 * time.Second)
	if got, _ := s.GetInt(ctx, "k"); got != 1 {
		t.Errorf("expected clamped TTL to keep key alive, got %d", got)
	}
}

func TestCounterStore_Increment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, "k", 1, time.Hour)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	got, err := s.Increment(ctx, "k", 5, time.Hour)
	if err != nil || got != 8 {
		t.Errorf("expected 8, got %d err=%v", got, err)
	}
}

func TestCounterStore_List(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	s.PutInt(ctx, "usage:2026-08-28:endpoint:hair-scan", 3, time.Hour)
	s.PutInt(ctx, "usage:2026-08-28:endpoint:stylist-chat", 1, time.Hour)
	s.PutInt(ctx, "usage:2026-08-28:tier:free", 4, time.Hour)

	keys, err := s.List(ctx, "usage:2026-08-28:endpoint:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %d: %v", len(keys), keys)
	}

	// Expired keys disappear from listings.
	fc.Advance(2 * time.Hour)
	keys, _ = s.List(ctx, "usage:2026-08-28:endpoint:")
	if len(keys) != 0 {
		t.Errorf("expected no live keys after expiry, got %v", keys)
	}
}

func TestCounterStore_Sweep(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	s := NewCounterStore(CounterStoreConfig{Clock: fc})
	defer s.Close()
	ctx := context.Background()

	s.PutInt(ctx, "a", 1, time.Minute)
	s.PutInt(ctx, "b", 1, time.Hour)
	fc.Advance(10 * time.Minute)

	s.doSweep()
	if s.Len() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", s.Len())
	}
}
