package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandly/edgeguard/adapters/metrics"
	"github.com/strandly/edgeguard/domain/guard"
	"github.com/strandly/edgeguard/domain/usage"
	"github.com/strandly/edgeguard/ports"
)

// TelemetryService is the fire-and-forget usage logger. Entries are
// buffered and flushed in batches on a background goroutine; every flushed
// entry persists a uniquely-keyed raw record plus three rolling per-day
// aggregate counters (by endpoint, by tier, by feature).
//
// It never adds latency to the request path and never surfaces an error:
// all write failures are discarded.
type TelemetryService struct {
	store  ports.CounterStore
	hash   ports.IdentityHasher
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger zerolog.Logger

	metrics *metrics.Collector // optional

	mu     sync.Mutex
	buffer []usage.Entry

	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// TelemetryDeps contains dependencies for TelemetryService.
type TelemetryDeps struct {
	Store  ports.CounterStore
	Hasher ports.IdentityHasher
	Clock  ports.Clock
	IDGen  ports.IDGenerator
}

// NewTelemetryService creates a telemetry recorder and starts its flush
// loop.
func NewTelemetryService(deps TelemetryDeps, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *TelemetryService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}

	t := &TelemetryService{
		store:         deps.Store,
		hash:          deps.Hasher,
		clock:         deps.Clock,
		idGen:         deps.IDGen,
		logger:        logger,
		buffer:        make([]usage.Entry, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	t.wg.Add(1)
	go t.flushLoop()

	return t
}

// SetMetrics attaches a Prometheus collector.
func (t *TelemetryService) SetMetrics(m *metrics.Collector) {
	t.metrics = m
}

// Record queues a completed request's outcome. The raw identity is hashed
// here; it never reaches the buffer, let alone the store. Non-blocking.
func (t *TelemetryService) Record(identity string, e usage.Entry) {
	e.IdentityDigest = t.hash.Digest(identity)
	if e.ID == "" {
		e.ID = t.idGen.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.clock.Now()
	}

	t.mu.Lock()
	t.buffer = append(t.buffer, e)
	if len(t.buffer) >= t.batchSize {
		t.flushLocked()
	}
	depth := len(t.buffer)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.UsageRecorded.Inc()
		t.metrics.UsageQueueSize.Set(float64(depth))
	}
}

// Flush forces immediate processing of queued entries.
func (t *TelemetryService) Flush(ctx context.Context) error {
	t.mu.Lock()
	entries := make([]usage.Entry, len(t.buffer))
	copy(entries, t.buffer)
	t.buffer = t.buffer[:0]
	t.mu.Unlock()

	t.writeEntries(ctx, entries)
	return nil
}

// flushLocked hands the buffered entries to a background writer. Caller
// holds t.mu.
func (t *TelemetryService) flushLocked() {
	entries := make([]usage.Entry, len(t.buffer))
	copy(entries, t.buffer)
	t.buffer = t.buffer[:0]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		t.writeEntries(ctx, entries)
	}()
}

// writeEntries persists raw entries and bumps the per-day aggregates.
// Every failure is discarded; telemetry gaps are the only symptom of a
// store outage here.
func (t *TelemetryService) writeEntries(ctx context.Context, entries []usage.Entry) {
	for _, e := range entries {
		day := guard.DayKey(e.Timestamp)
		ttl := guard.DayTTL(e.Timestamp)

		raw, err := json.Marshal(e)
		if err != nil {
			t.drop(err, "marshal")
			continue
		}
		if err := t.store.Put(ctx, usage.LogKey(day, e.ID), raw, ttl); err != nil {
			t.drop(err, "log_write")
			continue
		}
		for _, key := range e.AggregateKeys(day) {
			if _, err := t.store.Increment(ctx, key, 1, ttl); err != nil {
				t.drop(err, "aggregate_write")
			}
		}
	}
}

func (t *TelemetryService) drop(err error, stage string) {
	if t.metrics != nil {
		t.metrics.UsageDropped.Inc()
	}
	t.logger.Debug().Err(err).Str("stage", stage).Msg("usage entry dropped")
}

// Summary reads a day's rolling aggregates back for inspection.
func (t *TelemetryService) Summary(ctx context.Context, day string) (usage.Summary, error) {
	s := usage.Summary{
		Day:        day,
		ByEndpoint: map[string]int64{},
		ByTier:     map[string]int64{},
		ByFeature:  map[string]int64{},
	}

	for dim, out := range map[string]map[string]int64{
		usage.DimEndpoint: s.ByEndpoint,
		usage.DimTier:     s.ByTier,
		usage.DimFeature:  s.ByFeature,
	} {
		prefix := usage.AggregatePrefix(day, dim)
		keys, err := t.store.List(ctx, prefix)
		if err != nil {
			return usage.Summary{}, err
		}
		for _, k := range keys {
			value := usage.ParseAggregateValue(k, prefix)
			if value == "" {
				continue
			}
			n, err := t.store.GetInt(ctx, k)
			if err != nil {
				return usage.Summary{}, err
			}
			out[value] = n
		}
	}

	return s, nil
}

func (t *TelemetryService) flushLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Flush(context.Background())
		case <-t.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining entries.
func (t *TelemetryService) Close() error {
	t.closeOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t.Flush(ctx)
	})
	return nil
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*TelemetryService)(nil)
