package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/strandly/edgeguard/config"
	"github.com/strandly/edgeguard/domain/guard"
)

const testConfig = `
server:
  port: 0
identity:
  require: true
  hash_salt: pepper
tiers:
  free:
    daily_total: 50
    daily_expensive: 10
    daily_scans: 3
  premium:
    daily_total: 500
    daily_expensive: 100
    daily_scans: 30
cooldowns:
  scan: 600
budgets:
  core_cents: 2000
  experience_cents: 1000
metrics:
  enabled: false
`

func newTestHolder(t *testing.T) *config.Holder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgeguard.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	return h
}

func TestPolicyFromConfig(t *testing.T) {
	h := newTestHolder(t)
	defer h.Stop()

	p := PolicyFromConfig(h.Get())

	if !p.RequireIdentity {
		t.Errorf("expected identity to be required")
	}
	if p.Caps[guard.TierFree].ScansPerDay != 3 {
		t.Errorf("unexpected free caps %+v", p.Caps[guard.TierFree])
	}
	if p.Caps[guard.TierPremium].TotalPerDay != 500 {
		t.Errorf("unexpected premium caps %+v", p.Caps[guard.TierPremium])
	}
	if p.Cooldowns[guard.FeatureScan] != 600*time.Second {
		t.Errorf("unexpected cooldowns %+v", p.Cooldowns)
	}
	if p.Budgets[guard.PriorityCore] != 2000 || p.Budgets[guard.PriorityExperience] != 1000 {
		t.Errorf("unexpected budgets %+v", p.Budgets)
	}
	if p.Thresholds != guard.DefaultThresholds {
		t.Errorf("expected default thresholds, got %+v", p.Thresholds)
	}
}

func TestNewWithHolder_MemoryDriver(t *testing.T) {
	h := newTestHolder(t)

	a, err := NewWithHolder(h)
	if err != nil {
		t.Fatalf("NewWithHolder: %v", err)
	}
	defer a.Shutdown()

	if a.Guard == nil || a.Resolver == nil || a.Telemetry == nil {
		t.Fatalf("expected services to be wired")
	}
	if a.HTTPServer == nil {
		t.Fatalf("expected http server to be configured")
	}
	if a.memStore == nil {
		t.Errorf("expected memory store for default driver")
	}
	if a.janitor != nil {
		t.Errorf("janitor must not run without sqlite")
	}
}

func TestNewWithHolder_SQLiteDriver(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig + "\nstore:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "guard.db") + "\njanitor:\n  schedule: \"@hourly\"\n"
	path := filepath.Join(dir, "edgeguard.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}

	a, err := NewWithHolder(h)
	if err != nil {
		t.Fatalf("NewWithHolder: %v", err)
	}
	defer a.Shutdown()

	if a.db == nil {
		t.Errorf("expected sqlite database")
	}
	if a.janitor == nil {
		t.Errorf("expected janitor with sqlite driver and schedule")
	}
}

func TestReloadUpdatesPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgeguard.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}

	a, err := NewWithHolder(h)
	if err != nil {
		t.Fatalf("NewWithHolder: %v", err)
	}
	defer a.Shutdown()

	updated := testConfig + "\nthresholds:\n  degraded: 0.50\n  cached: 0.60\n  premium_only: 0.90\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// The OnChange hook pushes the new thresholds into the guard; verify
	// indirectly through a fresh conversion of the held config.
	p := PolicyFromConfig(h.Get())
	if p.Thresholds.DegradeAt != 0.50 {
		t.Errorf("expected reloaded thresholds, got %+v", p.Thresholds)
	}
}

func TestReloadFailureIncrementsErrorCounter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgeguard.yaml")
	cfg := strings.Replace(testConfig, "enabled: false", "enabled: true", 1)
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}

	a, err := NewWithHolder(h)
	if err != nil {
		t.Fatalf("NewWithHolder: %v", err)
	}
	defer a.Shutdown()
	if a.Metrics == nil {
		t.Fatalf("expected metrics collector with metrics enabled")
	}

	errsBefore := testutil.ToFloat64(a.Metrics.ConfigReloadErrors)
	okBefore := testutil.ToFloat64(a.Metrics.ConfigReloads)

	if err := os.WriteFile(path, []byte("store:\n  driver: cassandra\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatalf("expected reload error for invalid config")
	}

	if got := testutil.ToFloat64(a.Metrics.ConfigReloadErrors); got != errsBefore+1 {
		t.Errorf("expected reload error counter %v, got %v", errsBefore+1, got)
	}
	if got := testutil.ToFloat64(a.Metrics.ConfigReloads); got != okBefore {
		t.Errorf("expected success counter unchanged on failed reload, got %v", got)
	}
}
