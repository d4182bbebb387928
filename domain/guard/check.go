package guard

import "time"

// Caps holds the per-tier daily ceilings (value type). A ceiling of 0 or
// below means unlimited for that dimension.
type Caps struct {
	TotalPerDay     int64 // all actions
	ExpensivePerDay int64 // scan+explain+rerank combined
	ScansPerDay     int64 // scans specifically
}

// CapCounts carries the caller's current day counters (value type).
// Under concurrent writers these are lower bounds, never exact.
type CapCounts struct {
	Total     int64
	Expensive int64
	Scans     int64
}

// Thresholds holds the budget-fraction ladder (value type). Evaluated in
// descending order; see CheckBudget.
type Thresholds struct {
	DegradeAt     float64 // mode=degraded at or above this fraction
	CacheAt       float64 // mode=cached at or above this fraction
	PremiumOnlyAt float64 // experience only: non-premium blocked at or above
}

// DefaultThresholds is the production ladder.
var DefaultThresholds = Thresholds{
	DegradeAt:     0.70,
	CacheAt:       0.85,
	PremiumOnlyAt: 0.95,
}

// CooldownResult is the outcome of a cooldown check (value type).
type CooldownResult struct {
	Allowed       bool
	RetryAfterSec int64
}

// CheckCooldown evaluates whether a caller's last attempt timestamp for a
// feature is still within the cooldown window. lastUnix is the stored
// last-attempt time in unix seconds, 0 when no attempt is recorded.
// This is a PURE function.
func CheckCooldown(lastUnix int64, now time.Time, window time.Duration) CooldownResult {
	if window <= 0 || lastUnix <= 0 {
		return CooldownResult{Allowed: true}
	}
	elapsed := now.Unix() - lastUnix
	windowSec := int64(window / time.Second)
	if elapsed >= windowSec {
		return CooldownResult{Allowed: true}
	}
	retry := windowSec - elapsed
	if retry < 1 {
		retry = 1
	}
	return CooldownResult{Allowed: false, RetryAfterSec: retry}
}

// CheckCaps evaluates the three independent per-user daily ceilings and
// returns the rejection reason for the first exceeded ceiling, or "" when
// all applicable ceilings hold. Counts are checked before increment: a
// request is admitted while count < cap. This is a PURE function.
func CheckCaps(counts CapCounts, caps Caps, f Feature) string {
	if caps.TotalPerDay > 0 && counts.Total >= caps.TotalPerDay {
		return ReasonCapTotal
	}
	if f.Expensive() && caps.ExpensivePerDay > 0 && counts.Expensive >= caps.ExpensivePerDay {
		return ReasonCapExpensive
	}
	if f == FeatureScan && caps.ScansPerDay > 0 && counts.Scans >= caps.ScansPerDay {
		return ReasonCapScans
	}
	return ""
}

// BudgetResult is the outcome of a global budget check (value type).
type BudgetResult struct {
	Allowed bool
	Mode    Mode
	Reason  string
	// Fraction is usedCents/budgetCents, for observability.
	Fraction float64
}

// CheckBudget evaluates the global spend ladder for a priority class.
//
// Experience, first match wins on the used fraction:
//
//	>= 1.0            hard stop for everyone
//	>= PremiumOnlyAt  non-premium blocked, premium falls through
//	>= CacheAt        mode=cached
//	>= DegradeAt      mode=degraded
//	otherwise         mode=full
//
// Core runs a shorter ladder: full until CacheAt, degraded from there,
// hard stop only at full exhaustion. It never serves cached and never
// blocks below 1.0: scan ingestion is the flywheel the budget protects
// last. A budget of 0 or below means unlimited. This is a PURE function.
func CheckBudget(usedCents, budgetCents int64, class Priority, tier Tier, th Thresholds) BudgetResult {
	if budgetCents <= 0 {
		return BudgetResult{Allowed: true, Mode: ModeFull}
	}

	fraction := float64(usedCents) / float64(budgetCents)
	r := BudgetResult{Fraction: fraction}

	if fraction >= 1.0 {
		r.Reason = ReasonBudgetExhausted(class)
		return r
	}

	if class == PriorityCore {
		r.Allowed = true
		if fraction >= th.CacheAt {
			r.Mode = ModeDegraded
		} else {
			r.Mode = ModeFull
		}
		return r
	}

	if fraction >= th.PremiumOnlyAt && tier != TierPremium {
		r.Reason = ReasonPremiumOnly
		return r
	}

	r.Allowed = true
	switch {
	case fraction >= th.CacheAt:
		r.Mode = ModeCached
	case fraction >= th.DegradeAt:
		r.Mode = ModeDegraded
	default:
		r.Mode = ModeFull
	}
	return r
}
