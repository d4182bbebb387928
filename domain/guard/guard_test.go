package guard

import (
	"testing"
	"time"
)

func TestParseTier(t *testing.T) {
	cases := map[string]Tier{
		"free":    TierFree,
		"premium": TierPremium,
		"":        TierUnknown,
		"trial":   TierUnknown,
		"PREMIUM": TierUnknown, // header values are case-sensitive
	}
	for in, want := range cases {
		if got := ParseTier(in); got != want {
			t.Errorf("ParseTier(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestParsePriority_DefaultsToExperience(t *testing.T) {
	if got := ParsePriority("core"); got != PriorityCore {
		t.Errorf("expected core, got %q", got)
	}
	if got := ParsePriority("whatever"); got != PriorityExperience {
		t.Errorf("expected experience fallback, got %q", got)
	}
}

func TestFeature_Expensive(t *testing.T) {
	for _, f := range []Feature{FeatureScan, FeatureExplain, FeatureRerank} {
		if !f.Expensive() {
			t.Errorf("expected %s to be expensive", f)
		}
	}
	if FeatureChat.Expensive() {
		t.Errorf("expected chat to be cheap")
	}
}

func TestContext_EffectiveCost(t *testing.T) {
	c := Context{Priority: PriorityCore}
	if got := c.EffectiveCost(); got != 2 {
		t.Errorf("expected core default 2, got %d", got)
	}

	c = Context{Priority: PriorityExperience}
	if got := c.EffectiveCost(); got != 1 {
		t.Errorf("expected experience default 1, got %d", got)
	}

	c = Context{Priority: PriorityCore, CostCents: 40}
	if got := c.EffectiveCost(); got != 40 {
		t.Errorf("expected caller-supplied 40, got %d", got)
	}

	c = Context{Priority: PriorityCore, CostCents: 5000}
	if got := c.EffectiveCost(); got != MaxCostCents {
		t.Errorf("expected clamp to %d, got %d", MaxCostCents, got)
	}
}

func TestContext_Validate(t *testing.T) {
	c := Context{Endpoint: "hair-scan", Feature: FeatureScan}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := (Context{Feature: FeatureScan}).Validate(); err == nil {
		t.Errorf("expected error for missing endpoint")
	}
	if err := (Context{Endpoint: "hair-scan"}).Validate(); err == nil {
		t.Errorf("expected error for missing feature")
	}
}

func TestAccept(t *testing.T) {
	d := Accept(ModeDegraded)
	if !d.OK || d.Mode != ModeDegraded || d.Reason != "" {
		t.Errorf("unexpected decision: %+v", d)
	}
	if d.Headers["X-Guard-Mode"] != "degraded" {
		t.Errorf("expected mode header, got %v", d.Headers)
	}
}

func TestBlock(t *testing.T) {
	d := Block(ReasonCooldown, 42)
	if d.OK || d.Mode != ModeBlocked {
		t.Errorf("unexpected decision: %+v", d)
	}
	if d.Headers["Retry-After"] != "42" {
		t.Errorf("expected Retry-After header, got %v", d.Headers)
	}

	d = Block(ReasonMissingUID, 0)
	if _, ok := d.Headers["Retry-After"]; ok {
		t.Errorf("expected no Retry-After header without hint")
	}
}

func TestDayKey(t *testing.T) {
	// Day bucketing is UTC regardless of the local zone of the input.
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2026, 8, 29, 3, 0, 0, 0, loc) // 2026-08-28T18:00Z
	if got := DayKey(ts); got != "2026-08-28" {
		t.Errorf("expected 2026-08-28, got %q", got)
	}
}

func TestSecondsUntilMidnight(t *testing.T) {
	ts := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	if got := SecondsUntilMidnight(ts); got != 60 {
		t.Errorf("expected 60, got %d", got)
	}

	ts = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if got := SecondsUntilMidnight(ts); got != 86400 {
		t.Errorf("expected 86400, got %d", got)
	}
}

func TestDayTTL_OutlivesMidnight(t *testing.T) {
	ts := time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC)
	ttl := DayTTL(ts)
	if ttl <= time.Hour {
		t.Errorf("expected TTL past midnight, got %s", ttl)
	}
	if ttl > time.Hour+10*time.Second {
		t.Errorf("expected only a few seconds of grace, got %s", ttl)
	}
}

func TestKeyLayout(t *testing.T) {
	if got := UserKey("2026-08-28", "abc123", "total"); got != "user:2026-08-28:abc123:total" {
		t.Errorf("unexpected user key %q", got)
	}
	if got := BudgetKey("2026-08-28", PriorityCore); got != "budget:2026-08-28:core" {
		t.Errorf("unexpected budget key %q", got)
	}
	if got := CooldownKey("abc123", FeatureScan); got != "cd:abc123:scan" {
		t.Errorf("unexpected cooldown key %q", got)
	}
}
