package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/web"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	host string
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload page and report API over HTTP",
	Long: `Starts an HTTP server. POST a file to /api/reports to receive the PDF;
GET / serves an upload form. Run history is exposed at /api/runs when
DATABASE_URL is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.host, "host", "", "Interface to bind (default $SERVER_HOST)")
	f.IntVar(&serveFlags.port, "port", 0, "Port to listen on (default $SERVER_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := app.cfg
	if serveFlags.host != "" {
		cfg.Server.Host = serveFlags.host
	}
	if serveFlags.port > 0 {
		cfg.Server.Port = serveFlags.port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, closeHistory := openHistory(ctx, cfg)
	defer closeHistory()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"max_concurrent", cfg.Server.MaxConcurrent,
		"max_file_size", cfg.Server.MaxFileSize,
		"history", cfg.Database.HistoryEnabled(),
	)

	server := web.NewServer(cfg, core.NewPipeline(core.OptionsFromConfig(cfg)), recorder)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Let in-flight renders finish before closing connections.
	if status := server.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for reports to complete", "active", status.Active)
		if err := server.WaitForReports(shutdownCtx); err != nil {
			slog.Warn("reports did not complete in time", "error", err)
		} else {
			slog.Info("all reports completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
