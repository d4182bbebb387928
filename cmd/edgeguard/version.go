package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Stamped by the release build via -ldflags.
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version and commit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edgeguard %s (commit %s, built %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
