package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strandly/edgeguard/adapters/clock"
	"github.com/strandly/edgeguard/adapters/hasher"
	"github.com/strandly/edgeguard/adapters/idgen"
	"github.com/strandly/edgeguard/adapters/redis"
	"github.com/strandly/edgeguard/adapters/sqlite"
	"github.com/strandly/edgeguard/app"
	"github.com/strandly/edgeguard/config"
	"github.com/strandly/edgeguard/domain/guard"
	"github.com/strandly/edgeguard/ports"
)

var usageDay string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print a day's usage summary from the counter store",
	Long: `Read the rolling usage aggregates for one day directly from the
configured counter store and print them per endpoint, tier and feature.

Only works with persistent stores (sqlite, redis); the memory store
lives inside the server process.

Examples:
  edgeguard usage
  edgeguard usage --day 2026-08-27`,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVar(&usageDay, "day", "", "day to summarize (YYYY-MM-DD, default today UTC)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	day := usageDay
	if day == "" {
		day = guard.DayKey(clock.Real{}.Now())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("day must be YYYY-MM-DD, got %q", day)
	}

	tel := app.NewTelemetryService(app.TelemetryDeps{
		Store:  store,
		Hasher: hasher.NewSHA256(cfg.Identity.HashSalt),
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
	}, cfg.Telemetry.BatchSize, cfg.Telemetry.FlushInterval, zerolog.Nop())
	defer tel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := tel.Summary(ctx, day)
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}

	fmt.Printf("Usage for %s (%d entries)\n\n", s.Day, s.Total())
	printRollup("By endpoint", s.ByEndpoint)
	printRollup("By tier", s.ByTier)
	printRollup("By feature", s.ByFeature)
	return nil
}

func printRollup(title string, rollup map[string]int64) {
	fmt.Println(title + ":")
	if len(rollup) == 0 {
		fmt.Println("  (none)")
		fmt.Println()
		return
	}
	var keys []string
	for k := range rollup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, rollup[k])
	}
	fmt.Println()
}

func openStore(cfg *config.Config) (ports.CounterStore, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewCounterStore(db, clock.Real{}), func() { db.Close() }, nil

	case "redis":
		rs := redis.NewCounterStore(redis.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return rs, func() { rs.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("usage summaries need a persistent store, store.driver is %q", cfg.Store.Driver)
	}
}
