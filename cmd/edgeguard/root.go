package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "edgeguard",
	Short: "Admission control and budget guard for app backend endpoints",
	Long: `EdgeGuard sits in front of expensive backend endpoints and decides,
per request, whether to serve at full quality, degrade, serve cached,
or block. Decisions combine per-user daily quotas, per-feature
cooldowns and a global daily spend budget split by priority class.

Quick start:
  edgeguard serve       # Start the guard server
  edgeguard validate    # Validate configuration

Operations:
  edgeguard usage       # Print a day's usage summary
  edgeguard hash-token  # Hash an admin bypass token for the config`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "edgeguard.yaml", "config file path")
}
