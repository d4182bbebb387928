package bootstrap

import (
	"time"

	"github.com/strandly/edgeguard/app"
	"github.com/strandly/edgeguard/config"
	"github.com/strandly/edgeguard/domain/guard"
)

// PolicyFromConfig converts the config surface into the guard policy
// snapshot. Threshold zeros are impossible here; config validation and
// defaulting run first.
func PolicyFromConfig(cfg *config.Config) app.Policy {
	caps := make(map[guard.Tier]guard.Caps, len(cfg.Tiers))
	for name, tc := range cfg.Tiers {
		caps[guard.ParseTier(name)] = guard.Caps{
			TotalPerDay:     tc.DailyTotal,
			ExpensivePerDay: tc.DailyExpensive,
			ScansPerDay:     tc.DailyScans,
		}
	}

	cooldowns := make(map[guard.Feature]time.Duration, len(cfg.Cooldowns))
	for feature, secs := range cfg.Cooldowns {
		cooldowns[guard.Feature(feature)] = time.Duration(secs) * time.Second
	}

	return app.Policy{
		RequireIdentity: cfg.Identity.Require,
		Caps:            caps,
		Cooldowns:       cooldowns,
		Budgets: map[guard.Priority]int64{
			guard.PriorityCore:       cfg.Budgets.CoreCents,
			guard.PriorityExperience: cfg.Budgets.ExperienceCents,
		},
		Thresholds: guard.Thresholds{
			DegradeAt:     cfg.Thresholds.Degraded,
			CacheAt:       cfg.Thresholds.Cached,
			PremiumOnlyAt: cfg.Thresholds.PremiumOnly,
		},
	}
}
