// barcodereport renders delimited text records as a PDF of Code 128 barcodes.
//
// Usage:
//
//	barcodereport generate [-i input.txt] [-o barcode_report.pdf]
//	barcodereport sample [-o input.txt]
//	barcodereport serve [--host 0.0.0.0] [--port 8080]
//
// Every setting can also come from the environment or a .env file in the
// working directory (see internal/config).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/barcodereport/internal/config"
	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/history"
	"github.com/JonMunkholm/barcodereport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// app holds what setup prepared for the subcommands.
var app struct {
	cfg *config.Config
}

var rootCmd = &cobra.Command{
	Use:   "barcodereport",
	Short: "Render delimited text records as a PDF of Code 128 barcodes",
	Long: "barcodereport reads a text file with one record per line, encodes every\n" +
		"comma-separated value as a Code 128 barcode and lays the records out as\n" +
		"tables in a PDF report.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// setup loads .env, configuration and logging before any subcommand runs.
// Variables already set in the environment win over .env.
func setup(_ *cobra.Command, _ []string) error {
	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Debug("configuration loaded", "env_file", envLoaded, "config", cfg.String())
	app.cfg = cfg
	return nil
}

// openHistory connects the run history when a database is configured.
// History is best effort: a connection failure is logged and runs go on
// unrecorded.
func openHistory(ctx context.Context, cfg *config.Config) (history.Recorder, func()) {
	if !cfg.Database.HistoryEnabled() {
		return history.Nop{}, func() {}
	}

	pool, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Warn("run history unavailable", "error", err)
		return history.Nop{}, func() {}
	}
	slog.Debug("run history connected")
	return history.NewStore(pool), pool.Close
}

// diagnostic formats err for the terminal.
func diagnostic(err error) string {
	if core.IsUserFacing(err) {
		return fmt.Sprintf("Error: %s\n  %v", core.FormatUserError(err), err)
	}
	return "Error: " + err.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, diagnostic(err))
		os.Exit(1)
	}
}
