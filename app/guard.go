// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandly/edgeguard/adapters/metrics"
	"github.com/strandly/edgeguard/domain/guard"
	"github.com/strandly/edgeguard/ports"
)

// anonymousIdentity keys counters for callers without an identity when the
// deployment does not require one.
const anonymousIdentity = "anonymous"

// missingUIDRetrySec is the fixed retry hint for identity-less callers.
const missingUIDRetrySec = 60

// Policy is the hot-reloadable tuning surface of the admission controller.
// Swapped atomically; a request sees exactly one policy snapshot.
type Policy struct {
	RequireIdentity bool
	Caps            map[guard.Tier]guard.Caps
	Cooldowns       map[guard.Feature]time.Duration
	Budgets         map[guard.Priority]int64 // cents/day; <=0 means unlimited
	Thresholds      guard.Thresholds
}

// CapsFor returns the ceilings governing a tier. Unknown is governed by
// the same caps as free.
func (p *Policy) CapsFor(t guard.Tier) guard.Caps {
	if t == guard.TierUnknown {
		t = guard.TierFree
	}
	return p.Caps[t]
}

// GuardDeps contains dependencies for GuardService.
type GuardDeps struct {
	Store  ports.CounterStore
	Hasher ports.IdentityHasher
	Clock  ports.Clock
}

// GuardService is the admission controller. It combines cooldown checks,
// per-user daily caps and the global priority-class budget ladder into a
// single decision, then commits counters for accepted requests.
//
// Stateless per request: all shared state lives in the counter store.
type GuardService struct {
	store  ports.CounterStore
	hash   ports.IdentityHasher
	clock  ports.Clock
	logger zerolog.Logger

	metrics *metrics.Collector // optional

	policy atomic.Pointer[Policy]
}

// NewGuardService creates a new admission controller.
func NewGuardService(deps GuardDeps, p Policy, logger zerolog.Logger) *GuardService {
	s := &GuardService{
		store:  deps.Store,
		hash:   deps.Hasher,
		clock:  deps.Clock,
		logger: logger,
	}
	s.UpdatePolicy(p)
	return s
}

// SetMetrics attaches a Prometheus collector.
func (s *GuardService) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// UpdatePolicy swaps the active policy. Thread-safe; called from the
// config holder's change hook.
func (s *GuardService) UpdatePolicy(p Policy) {
	s.policy.Store(&p)
}

// Check runs the decision algorithm for one request, in order, first
// rejection wins:
//
//	admin bypass → cooldown → per-user daily caps → global budget → commit
//
// Policy rejections come back as blocked decisions, never errors; the only
// error is a malformed context. Store reads fail open (unreadable counter
// counts as zero) and commit writes are best effort: a KV outage degrades
// quota precision, not feature availability.
func (s *GuardService) Check(ctx context.Context, gc guard.Context) (guard.Decision, error) {
	if err := gc.Validate(); err != nil {
		return guard.Decision{}, err
	}

	// 1. Admin bypass short-circuits everything. No counters touched.
	if gc.Bypass {
		return s.finish(gc, guard.Accept(guard.ModeFull)), nil
	}

	pol := s.policy.Load()
	now := s.clock.Now()

	if gc.Identity == "" {
		if pol.RequireIdentity {
			return s.finish(gc, guard.Block(guard.ReasonMissingUID, missingUIDRetrySec)), nil
		}
		gc.Identity = anonymousIdentity
	}
	digest := s.hash.Digest(gc.Identity)
	day := guard.DayKey(now)

	// 2. Cooldown. The last-attempt stamp is written for every attempt
	// that clears this gate, before the later rules run: the cooldown
	// clock cares about attempts, not successes. A rejected attempt does
	// not extend an armed cooldown.
	if window := pol.Cooldowns[gc.Feature]; window > 0 {
		cdKey := guard.CooldownKey(digest, gc.Feature)
		last := s.readCount(ctx, cdKey, "cooldown_read")
		cd := guard.CheckCooldown(last, now, window)
		if !cd.Allowed {
			return s.finish(gc, guard.Block(guard.ReasonCooldown, cd.RetryAfterSec)), nil
		}
		s.write(ctx, cdKey, now.Unix(), window, "cooldown_write")
	}

	// 3. Per-user daily caps.
	caps := pol.CapsFor(gc.Tier)
	counts := guard.CapCounts{
		Total: s.readCount(ctx, guard.UserKey(day, digest, "total"), "cap_read"),
	}
	if gc.Feature.Expensive() {
		counts.Expensive = s.readCount(ctx, guard.UserKey(day, digest, "expensive"), "cap_read")
	}
	if gc.Feature == guard.FeatureScan {
		counts.Scans = s.readCount(ctx, guard.UserKey(day, digest, "scans"), "cap_read")
	}
	if reason := guard.CheckCaps(counts, caps, gc.Feature); reason != "" {
		return s.finish(gc, guard.Block(reason, guard.SecondsUntilMidnight(now))), nil
	}

	// 4. Global budget ladder for the request's priority class.
	used := s.readCount(ctx, guard.BudgetKey(day, gc.Priority), "budget_read")
	budget := guard.CheckBudget(used, pol.Budgets[gc.Priority], gc.Priority, gc.Tier, pol.Thresholds)
	if s.metrics != nil {
		s.metrics.BudgetUsedFraction.WithLabelValues(string(gc.Priority)).Set(budget.Fraction)
	}
	if !budget.Allowed {
		return s.finish(gc, guard.Block(budget.Reason, guard.SecondsUntilMidnight(now))), nil
	}

	// 5. Commit. Best effort; the gate decision is already made.
	ttl := guard.DayTTL(now)
	cost := gc.EffectiveCost()
	s.bump(ctx, guard.UserKey(day, digest, "total"), 1, ttl)
	if gc.Feature.Expensive() {
		s.bump(ctx, guard.UserKey(day, digest, "expensive"), 1, ttl)
	}
	if gc.Feature == guard.FeatureScan {
		s.bump(ctx, guard.UserKey(day, digest, "scans"), 1, ttl)
	}
	s.bump(ctx, guard.BudgetKey(day, gc.Priority), cost, ttl)
	if s.metrics != nil {
		s.metrics.BudgetSpentCents.WithLabelValues(string(gc.Priority)).Add(float64(cost))
	}

	return s.finish(gc, guard.Accept(budget.Mode)), nil
}

// readCount reads a counter, failing open to zero on store errors.
func (s *GuardService) readCount(ctx context.Context, key, op string) int64 {
	v, err := s.store.GetInt(ctx, key)
	if err != nil {
		s.storeError(op, err, key)
		return 0
	}
	return v
}

// write stores a value, swallowing store errors.
func (s *GuardService) write(ctx context.Context, key string, value int64, ttl time.Duration, op string) {
	if err := s.store.PutInt(ctx, key, value, ttl); err != nil {
		s.storeError(op, err, key)
	}
}

// bump increments a counter, swallowing store errors.
func (s *GuardService) bump(ctx context.Context, key string, delta int64, ttl time.Duration) {
	if _, err := s.store.Increment(ctx, key, delta, ttl); err != nil {
		s.storeError("commit", err, key)
	}
}

func (s *GuardService) storeError(op string, err error, key string) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	s.logger.Debug().Err(err).Str("op", op).Str("key", key).Msg("counter store failure")
}

func (s *GuardService) finish(gc guard.Context, d guard.Decision) guard.Decision {
	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(gc.Endpoint, string(d.Mode), string(gc.Tier)).Inc()
		if !d.OK {
			s.metrics.RejectionsTotal.WithLabelValues(d.Reason, string(gc.Tier)).Inc()
		}
	}
	if !d.OK {
		s.logger.Debug().
			Str("endpoint", gc.Endpoint).
			Str("feature", string(gc.Feature)).
			Str("tier", string(gc.Tier)).
			Str("reason", d.Reason).
			Int64("retry_after_sec", d.RetryAfterSec).
			Msg("request blocked")
	}
	return d
}
