// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces the environment override variables, e.g.
// EDGEGUARD_SERVER_PORT or EDGEGUARD_IDENTITY_HASHSALT.
const envPrefix = "edgeguard"

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Store      StoreConfig           `yaml:"store"`
	Identity   IdentityConfig        `yaml:"identity"`
	Tiers      map[string]TierConfig `yaml:"tiers" envconfig:"-"`
	Cooldowns  map[string]int64      `yaml:"cooldowns" envconfig:"-"` // feature -> seconds
	Budgets    BudgetConfig          `yaml:"budgets"`
	Thresholds ThresholdConfig       `yaml:"thresholds"`
	Telemetry  TelemetryConfig       `yaml:"telemetry"`
	Janitor    JanitorConfig         `yaml:"janitor"`
	Logging    LoggingConfig         `yaml:"logging"`
	Metrics    MetricsConfig         `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects the counter store backend.
type StoreConfig struct {
	Driver string      `yaml:"driver"` // "memory", "sqlite" or "redis"
	DSN    string      `yaml:"dsn"`    // sqlite file path
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis counter store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// IdentityConfig configures caller identity handling.
type IdentityConfig struct {
	Require        bool   `yaml:"require"`
	HashSalt       string `yaml:"hash_salt"`
	AdminTokenHash string `yaml:"admin_token_hash,omitempty"` // bcrypt; empty disables bypass
}

// TierConfig holds the per-user daily ceilings for one subscription
// tier. Zero means unlimited for that dimension.
type TierConfig struct {
	DailyTotal     int64 `yaml:"daily_total"`
	DailyExpensive int64 `yaml:"daily_expensive"`
	DailyScans     int64 `yaml:"daily_scans"`
}

// BudgetConfig holds the global daily spend ceilings in cents per
// priority class. Zero means unlimited.
type BudgetConfig struct {
	CoreCents       int64 `yaml:"core_cents"`
	ExperienceCents int64 `yaml:"experience_cents"`
}

// ThresholdConfig holds the degradation ladder boundaries as fractions
// of the class budget.
type ThresholdConfig struct {
	Degraded    float64 `yaml:"degraded"`
	Cached      float64 `yaml:"cached"`
	PremiumOnly float64 `yaml:"premium_only"`
}

// TelemetryConfig configures the usage recorder.
type TelemetryConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// JanitorConfig configures the expired-key sweeper for the sqlite
// backend. Cron syntax; empty disables the janitor.
type JanitorConfig struct {
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file. $VARS in the file are
// expanded, then EDGEGUARD_* environment variables override scalar
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment
// variables. Tier caps and cooldowns keep their defaults; deployments
// that tune those need a config file.
func LoadFromEnv() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falling back to environment
// variables when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "edgeguard.db"
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}

	if cfg.Tiers == nil {
		cfg.Tiers = map[string]TierConfig{
			"free":    {DailyTotal: 50, DailyExpensive: 10, DailyScans: 3},
			"premium": {DailyTotal: 500, DailyExpensive: 100, DailyScans: 30},
		}
	}
	if cfg.Cooldowns == nil {
		cfg.Cooldowns = map[string]int64{
			"scan":    600,
			"explain": 15,
			"rerank":  30,
		}
	}

	if cfg.Thresholds.Degraded == 0 {
		cfg.Thresholds.Degraded = 0.70
	}
	if cfg.Thresholds.Cached == 0 {
		cfg.Thresholds.Cached = 0.85
	}
	if cfg.Thresholds.PremiumOnly == 0 {
		cfg.Thresholds.PremiumOnly = 0.95
	}

	if cfg.Telemetry.BatchSize == 0 {
		cfg.Telemetry.BatchSize = 100
	}
	if cfg.Telemetry.FlushInterval == 0 {
		cfg.Telemetry.FlushInterval = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"memory": true, "sqlite": true, "redis": true}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("store.driver must be 'memory', 'sqlite' or 'redis', got %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.driver is 'redis'")
	}

	if cfg.Identity.HashSalt == "" {
		return fmt.Errorf("identity.hash_salt is required")
	}

	for name, tier := range cfg.Tiers {
		if tier.DailyTotal < 0 || tier.DailyExpensive < 0 || tier.DailyScans < 0 {
			return fmt.Errorf("tiers.%s: caps must not be negative", name)
		}
	}
	for feature, secs := range cfg.Cooldowns {
		if secs < 0 {
			return fmt.Errorf("cooldowns.%s must not be negative", feature)
		}
	}

	th := cfg.Thresholds
	if th.Degraded <= 0 || th.Degraded >= 1 ||
		th.Cached <= th.Degraded || th.Cached >= 1 ||
		th.PremiumOnly <= th.Cached || th.PremiumOnly >= 1 {
		return fmt.Errorf("thresholds must satisfy 0 < degraded < cached < premium_only < 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}

	return nil
}
