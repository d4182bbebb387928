package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
server:
  port: 9090
store:
  driver: sqlite
  dsn: /tmp/guard.db
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
  explain: 15
budgets:
  core_cents: 2000
  experience_cents: 1000
telemetry:
  batch_size: 50
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgeguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/guard.db" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if !cfg.Identity.Require || cfg.Identity.HashSalt != "pepper" {
		t.Errorf("unexpected identity config %+v", cfg.Identity)
	}
	if cfg.Tiers["free"].DailyScans != 3 || cfg.Tiers["premium"].DailyTotal != 500 {
		t.Errorf("unexpected tiers %+v", cfg.Tiers)
	}
	if cfg.Cooldowns["scan"] != 600 {
		t.Errorf("unexpected cooldowns %+v", cfg.Cooldowns)
	}
	if cfg.Budgets.CoreCents != 2000 || cfg.Budgets.ExperienceCents != 1000 {
		t.Errorf("unexpected budgets %+v", cfg.Budgets)
	}
	if cfg.Telemetry.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Telemetry.BatchSize)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "identity:\n  hash_salt: pepper\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory driver default, got %q", cfg.Store.Driver)
	}
	if cfg.Thresholds.Degraded != 0.70 || cfg.Thresholds.Cached != 0.85 || cfg.Thresholds.PremiumOnly != 0.95 {
		t.Errorf("unexpected threshold defaults %+v", cfg.Thresholds)
	}
	if cfg.Tiers["free"].DailyTotal != 50 {
		t.Errorf("unexpected tier defaults %+v", cfg.Tiers)
	}
	if cfg.Cooldowns["scan"] != 600 {
		t.Errorf("unexpected cooldown defaults %+v", cfg.Cooldowns)
	}
	if cfg.Telemetry.BatchSize != 100 || cfg.Telemetry.FlushInterval != 10*time.Second {
		t.Errorf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("GUARD_TEST_SALT", "from-env")
	cfg, err := Load(writeConfig(t, "identity:\n  hash_salt: ${GUARD_TEST_SALT}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.HashSalt != "from-env" {
		t.Errorf("expected env expansion, got %q", cfg.Identity.HashSalt)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EDGEGUARD_SERVER_PORT", "7070")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected env override to win, got %d", cfg.Server.Port)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing salt", "server:\n  port: 8080\n"},
		{"bad driver", "store:\n  driver: cassandra\nidentity:\n  hash_salt: x\n"},
		{"negative cap", "identity:\n  hash_salt: x\ntiers:\n  free:\n    daily_total: -1\n"},
		{"negative cooldown", "identity:\n  hash_salt: x\ncooldowns:\n  scan: -5\n"},
		{"bad thresholds", "identity:\n  hash_salt: x\nthresholds:\n  degraded: 0.9\n  cached: 0.8\n  premium_only: 0.95\n"},
		{"bad log level", "identity:\n  hash_salt: x\nlogging:\n  level: loud\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoadWithFallback_MissingFile(t *testing.T) {
	t.Setenv("EDGEGUARD_IDENTITY_HASHSALT", "pepper")
	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Identity.HashSalt != "pepper" {
		t.Errorf("expected env-only config, got %+v", cfg.Identity)
	}
}
