// Package commands implements the carton CLI commands.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/config"
	"github.com/carton-db/carton/cli/internal/ui"
	"github.com/carton-db/carton/cli/internal/version"
	"github.com/carton-db/carton/telemetry"
)

var (
	flagProvider    string
	flagURL         string
	flagNoTelemetry bool
)

var rootCmd = &cobra.Command{
	Use:   "carton",
	Short: "Document tables over plain SQL",
	Long: `Carton stores JSON documents in ordinary SQL tables and compiles
filter expressions to plain, parameterized SQL for sqlserver, postgres,
mysql, and sqlite.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "",
		"database provider (sqlserver, postgres, mysql, sqlite)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "",
		"database connection string")
	rootCmd.PersistentFlags().BoolVar(&flagNoTelemetry, "no-telemetry", false,
		"disable anonymous usage collection")
}

// Execute is the entry point for the CLI. Usage collection is opt-in
// through CARTON_TELEMETRY=1.
func Execute() error {
	telemetry.Init(version.Version, os.Getenv("CARTON_TELEMETRY") == "1")
	defer telemetry.Shutdown()

	if err := rootCmd.Execute(); err != nil {
		telemetry.RecordError("command", err, nil)
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

// loadConfig reads carton.yaml and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagURL != "" {
		cfg.URL = flagURL
	}
	return cfg, nil
}

// instrumented wraps a RunE with a telemetry command event.
func instrumented(name string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := fn(cmd, args)
		telemetry.RecordCommand(name, flagProvider, time.Since(start), err)
		return err
	}
}
