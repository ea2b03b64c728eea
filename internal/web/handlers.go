package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/history"
	"github.com/JonMunkholm/barcodereport/internal/logging"
	"github.com/JonMunkholm/barcodereport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// maxRecentRuns bounds the limit query parameter of /api/runs.
const maxRecentRuns = 500

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Index(templates.IndexData{
		Title:       s.cfg.Report.Title,
		MaxFileSize: s.cfg.Server.MaxFileSize,
	}).Render(r.Context(), w)
}

// handleHealth reports liveness and render slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"status":  "ok",
		"reports": s.limiter.Status(),
	})
}

// handleCreateReport renders the uploaded file into a PDF and returns it.
// The PDF is buffered completely before anything is sent, so a failed run
// answers with an error instead of a truncated document.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Server.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, fmt.Errorf("file too large: %w", err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid form: %w", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, core.ErrTooManyReports) {
			w.Header().Set("Retry-After", "10")
		}
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	var buf bytes.Buffer
	res, err := s.pipeline.Build(r.Context(), file, &buf)
	res.Input = header.Filename
	s.record(r, history.FromResult(history.SourceHTTP, res, err))
	if err != nil {
		s.respondError(w, r, err, reportStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filepath.Base(s.cfg.Report.OutputPath)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Report-Run-ID", res.RunID)
	w.Header().Set("X-Report-Rows", strconv.Itoa(res.Rows))
	w.Header().Set("X-Report-Failed-Fields", strconv.Itoa(len(res.Failures)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("report response write failed", "run_id", res.RunID, "error", err)
	}
}

// record stores a run in history. Failures are logged and otherwise ignored.
func (s *Server) record(r *http.Request, run history.Run) {
	if err := s.history.Record(r.Context(), run); err != nil {
		logging.FromContext(r.Context()).Warn("failed to record report run", "run_id", run.ID, "error", err)
	}
}

// handleListRuns returns the most recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentRuns)
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, historyStatus(err))
		return
	}
	writeJSON(w, r, runs)
}

// handleGetRun returns one run by id.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.history.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, historyStatus(err))
		return
	}
	writeJSON(w, r, run)
}

// reportStatus maps a fatal pipeline error to an HTTP status.
func reportStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInputRead), errors.Is(err, core.ErrInputUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyReports):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// historyStatus maps a history error to an HTTP status.
func historyStatus(err error) int {
	switch {
	case errors.Is(err, history.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
