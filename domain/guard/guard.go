// Package guard provides pure functions for admission control decisions.
// All functions are deterministic with no side effects; orchestration and
// I/O live in app.
package guard

import "fmt"

// Tier is the subscription class of a caller, governing quota ceilings.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierUnknown Tier = "unknown" // unrecognized or absent tier header
)

// ParseTier normalizes a declared tier header value. Anything unrecognized
// maps to TierUnknown, which is governed by the same caps as free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFree, TierPremium:
		return Tier(s)
	default:
		return TierUnknown
	}
}

// Priority is the spend budget class a request draws from.
type Priority string

const (
	PriorityCore       Priority = "core"       // primary value-generating traffic (e.g. scan ingestion)
	PriorityExperience Priority = "experience" // secondary traffic, throttled first
)

// ParsePriority normalizes a declared priority. Unrecognized values map to
// experience so that unclassified traffic is throttled first.
func ParsePriority(s string) Priority {
	if Priority(s) == PriorityCore {
		return PriorityCore
	}
	return PriorityExperience
}

// Feature labels the kind of expensive operation being gated.
type Feature string

const (
	FeatureScan    Feature = "scan"
	FeatureExplain Feature = "explain"
	FeatureRerank  Feature = "rerank"
	FeatureChat    Feature = "chat"
)

// Expensive reports whether the feature counts against the per-tier
// expensive-actions ceiling (scan+explain+rerank combined).
func (f Feature) Expensive() bool {
	switch f {
	case FeatureScan, FeatureExplain, FeatureRerank:
		return true
	}
	return false
}

// Mode is the admission outcome granularity beyond pass/fail.
type Mode string

const (
	ModeFull     Mode = "full"     // execute normal feature logic
	ModeDegraded Mode = "degraded" // serve a cheaper/smaller variant
	ModeCached   Mode = "cached"   // prefer cached or static fallback
	ModeBlocked  Mode = "blocked"  // do not execute; 429-style response
)

// Rejection reasons.
const (
	ReasonMissingUID   = "missing_uid"
	ReasonCooldown     = "cooldown"
	ReasonCapTotal     = "daily_cap_total"
	ReasonCapExpensive = "daily_cap_expensive"
	ReasonCapScans     = "daily_cap_scans"
	ReasonPremiumOnly  = "global_budget_premium_only"
)

// ReasonBudgetExhausted returns the hard-stop reason for a priority class.
func ReasonBudgetExhausted(p Priority) string {
	return fmt.Sprintf("global_budget_%s_exhausted", p)
}

// Cost bounds for the global budget commit, in cents.
const (
	MinCostCents = 0
	MaxCostCents = 100
)

// DefaultCostCents returns the estimated cost when the caller supplies none.
func DefaultCostCents(p Priority) int64 {
	if p == PriorityCore {
		return 2
	}
	return 1
}

// ClampCost bounds a caller-supplied cost estimate to [MinCostCents, MaxCostCents].
func ClampCost(cents int64) int64 {
	if cents < MinCostCents {
		return MinCostCents
	}
	if cents > MaxCostCents {
		return MaxCostCents
	}
	return cents
}

// Context describes one inbound request to the admission controller
// (immutable value type, constructed by the caller).
type Context struct {
	Identity  string // opaque caller identity; empty when absent
	Tier      Tier
	Endpoint  string // e.g. "hair-scan", "stylist-chat"
	Feature   Feature
	Priority  Priority
	CostCents int64 // estimated cost; 0 means "use the class default"
	Bypass    bool  // admin bypass token matched
}

// Validate reports programmer errors in a context. Policy rejections are
// never errors; this only catches malformed input.
func (c Context) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("guard: context missing endpoint")
	}
	if c.Feature == "" {
		return fmt.Errorf("guard: context missing feature tag")
	}
	return nil
}

// EffectiveCost returns the clamped cost this request charges to its
// priority class budget.
func (c Context) EffectiveCost() int64 {
	if c.CostCents <= 0 {
		return DefaultCostCents(c.Priority)
	}
	return ClampCost(c.CostCents)
}

// Decision is the sole output artifact of the admission controller.
// Constructed fresh per request, never persisted.
type Decision struct {
	OK            bool
	Mode          Mode
	Reason        string
	RetryAfterSec int64
	Headers       map[string]string
}

// Accept builds an accepting decision. There is no OK=false with a
// non-blocked mode, and no OK=true decision carries a reason.
func Accept(mode Mode) Decision {
	return Decision{
		OK:   true,
		Mode: mode,
		Headers: map[string]string{
			"X-Guard-Mode": string(mode),
		},
	}
}

// Block builds a rejecting decision with a machine-readable reason and an
// optional retry hint in seconds.
func Block(reason string, retryAfterSec int64) Decision {
	d := Decision{
		OK:            false,
		Mode:          ModeBlocked,
		Reason:        reason,
		RetryAfterSec: retryAfterSec,
		Headers: map[string]string{
			"X-Guard-Mode": string(ModeBlocked),
		},
	}
	if retryAfterSec > 0 {
		d.Headers["Retry-After"] = fmt.Sprintf("%d", retryAfterSec)
	}
	return d
}
