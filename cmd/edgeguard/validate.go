package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/strandly/edgeguard/adapters/sqlite"
	"github.com/strandly/edgeguard/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the EdgeGuard configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Thresholds form a strict ladder
  - SQLite database is writable (optional)

Examples:
  edgeguard validate
  edgeguard validate --config /etc/edgeguard/config.yaml`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if the sqlite database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	fmt.Printf("  %s Store: %s\n", checkMark, cfg.Store.Driver)
	fmt.Printf("  %s Identity required: %v\n", checkMark, cfg.Identity.Require)
	fmt.Printf("  %s Tiers configured: %d\n", checkMark, len(cfg.Tiers))
	fmt.Printf("  %s Budgets: core=%d¢ experience=%d¢\n", checkMark,
		cfg.Budgets.CoreCents, cfg.Budgets.ExperienceCents)
	fmt.Printf("  %s Thresholds: %.2f / %.2f / %.2f\n", checkMark,
		cfg.Thresholds.Degraded, cfg.Thresholds.Cached, cfg.Thresholds.PremiumOnly)

	var features []string
	for f := range cfg.Cooldowns {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		fmt.Printf("  %s Cooldown %s: %ds\n", checkMark, f, cfg.Cooldowns[f])
	}

	if validateCheckDatabase && cfg.Store.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg.Store.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
