package guard

import (
	"fmt"
	"time"
)

// dayTTLGraceSec keeps day-scoped keys alive a few seconds past UTC
// midnight so in-flight requests straddling the boundary do not read a
// half-expired day.
const dayTTLGraceSec = 5

// DayKey returns the UTC calendar day bucket for a time, e.g. "2026-08-28".
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SecondsUntilMidnight returns the whole seconds remaining until the next
// UTC midnight, used as the retry hint for daily cap rejections.
func SecondsUntilMidnight(t time.Time) int64 {
	u := t.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	s := int64(next.Sub(u) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// DayTTL returns the TTL for a day-scoped key: expiry shortly after the
// next UTC midnight, giving automatic daily reset without cleanup.
func DayTTL(t time.Time) time.Duration {
	return time.Duration(SecondsUntilMidnight(t)+dayTTLGraceSec) * time.Second
}

// Counter key layout. Per-user counters carry the identity digest, never
// the raw identity.

// UserKey returns the per-user counter key for a day and dimension
// ("total", "expensive", "scans").
func UserKey(day, identityDigest, dimension string) string {
	return fmt.Sprintf("user:%s:%s:%s", day, identityDigest, dimension)
}

// BudgetKey returns the global budget counter key for a day and class.
func BudgetKey(day string, class Priority) string {
	return fmt.Sprintf("budget:%s:%s", day, class)
}

// CooldownKey returns the last-attempt timestamp key for an identity and
// feature. Not day-scoped; the cooldown window itself bounds its life.
func CooldownKey(identityDigest string, f Feature) string {
	return fmt.Sprintf("cd:%s:%s", identityDigest, f)
}
