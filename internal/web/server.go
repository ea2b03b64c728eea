// Package web provides the HTTP server for generating reports from uploads.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JonMunkholm/barcodereport/internal/config"
	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/history"
	"github.com/JonMunkholm/barcodereport/internal/logging"
	mw "github.com/JonMunkholm/barcodereport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the report generator.
type Server struct {
	cfg      *config.Config
	pipeline *core.Pipeline
	limiter  *core.ReportLimiter
	history  history.Recorder
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server. A nil recorder disables run history.
func NewServer(cfg *config.Config, pipeline *core.Pipeline, recorder history.Recorder) *Server {
	if recorder == nil {
		recorder = history.Nop{}
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		limiter:  core.NewReportLimiter(cfg.Server.MaxConcurrent, cfg.Server.MaxWaitTime),
		history:  recorder,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.WriteTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.WriteTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/reports", s.handleCreateReport)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logging.FromContext(context.Background()).Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// LimiterStatus reports how many renders are in flight.
func (s *Server) LimiterStatus() core.LimiterStatus {
	return s.limiter.Status()
}

// WaitForReports blocks until every in-flight render finished or ctx is done.
func (s *Server) WaitForReports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
