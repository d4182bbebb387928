package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandly/edgeguard/bootstrap"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the guard server",
	Long: `Start the EdgeGuard admission server.

The server will:
  - Load configuration from edgeguard.yaml (or --config)
  - Apply EDGEGUARD_* environment variable overrides
  - Connect to the configured counter store (memory, sqlite or redis)
  - Serve guard decisions on /v1/guard and accept usage reports on /v1/usage

Environment variables (for container deployments):
  EDGEGUARD_SERVER_PORT         - Server port (default: 8080)
  EDGEGUARD_STORE_DRIVER        - Counter store: memory, sqlite or redis
  EDGEGUARD_STORE_DSN           - SQLite path (default: edgeguard.db)
  EDGEGUARD_IDENTITY_HASHSALT   - Salt for identity digests (required)
  EDGEGUARD_LOGGING_LEVEL       - Log level: debug, info, warn, error

Examples:
  edgeguard serve
  edgeguard serve --config /etc/edgeguard/config.yaml
  edgeguard serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.New(cfgFile)
	} else {
		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}
		app, err = bootstrap.NewFromEnv(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
