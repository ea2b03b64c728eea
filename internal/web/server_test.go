package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/barcodereport/internal/config"
	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/history"
	"github.com/google/go-cmp/cmp"
)

// fakeRecorder keeps runs in memory.
type fakeRecorder struct {
	mu        sync.Mutex
	runs      []history.Run
	recordErr error
	lastLimit int
}

func (f *fakeRecorder) Record(_ context.Context, run history.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, limit int) ([]history.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return append([]history.Run(nil), f.runs...), nil
}

func (f *fakeRecorder) Get(_ context.Context, id string) (history.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return history.Run{}, fmt.Errorf("%w: %s", history.ErrNotFound, id)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Report.ArtifactDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, recorder history.Recorder) *Server {
	t.Helper()
	return NewServer(cfg, core.NewPipeline(core.OptionsFromConfig(cfg)), recorder)
}

// uploadRequest builds a multipart POST to /api/reports. An empty field name
// sends a form without a file.
func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	} else {
		mw.WriteField("note", "no file")
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `action="/api/reports"`) {
		t.Error("index page missing upload form")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Status  string             `json:"status"`
		Reports core.LimiterStatus `json:"reports"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Reports.MaxConcurrent != 4 {
		t.Errorf("health = %+v, want ok with 4 slots", body)
	}
}

func TestHandleCreateReport(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestServer(t, testConfig(t), recorder)

	rec := serve(s, uploadRequest(t, "file", "input.txt", "A1,B2\n€,ok\n"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("response body is not a PDF")
	}
	if got := rec.Header().Get("X-Report-Rows"); got != "2" {
		t.Errorf("X-Report-Rows = %q, want 2", got)
	}
	if got := rec.Header().Get("X-Report-Failed-Fields"); got != "1" {
		t.Errorf("X-Report-Failed-Fields = %q, want 1", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "barcode_report.pdf") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(recorder.runs))
	}
	run := recorder.runs[0]
	if run.Source != history.SourceHTTP || run.Status != history.StatusSucceeded || run.Input != "input.txt" {
		t.Errorf("recorded run = %+v", run)
	}
	if run.ID != rec.Header().Get("X-Report-Run-ID") {
		t.Errorf("run id %q does not match header %q", run.ID, rec.Header().Get("X-Report-Run-ID"))
	}
}

func TestHandleCreateReport_RecordFailureIgnored(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeRecorder{recordErr: errors.New("connection refused")})

	rec := serve(s, uploadRequest(t, "file", "input.txt", "A1\n"))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleCreateReport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(cfg *config.Config)
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no file",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "", "", "") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:  "file too large",
			setup: func(cfg *config.Config) { cfg.Server.MaxFileSize = 64 },
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "big.txt", strings.Repeat("A1,B2\n", 200))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name: "line too long",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "long.txt", strings.Repeat("x", core.MaxLineLength+10))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "FILE003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.setup != nil {
				tt.setup(cfg)
			}
			s := newTestServer(t, cfg, nil)

			rec := serve(s, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestHandleCreateReport_LimiterSaturated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConcurrent = 1
	cfg.Server.MaxWaitTime = 50 * time.Millisecond
	s := newTestServer(t, cfg, nil)

	if err := s.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer s.limiter.Release()

	rec := serve(s, uploadRequest(t, "file", "input.txt", "A1\n"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if got := decodeError(t, rec).Code; got != "RPT001" {
		t.Errorf("code = %q, want RPT001", got)
	}
}

func TestHandleListRuns(t *testing.T) {
	recorder := &fakeRecorder{runs: []history.Run{
		{ID: "b", Status: history.StatusFailed, ErrorCode: "DOC001"},
		{ID: "a", Status: history.StatusSucceeded},
	}}
	s := newTestServer(t, testConfig(t), recorder)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var runs []history.Run
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(recorder.runs, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	if recorder.lastLimit != maxRecentRuns {
		t.Errorf("limit passed = %d, want %d", recorder.lastLimit, maxRecentRuns)
	}
}

func TestHandleListRuns_InvalidLimit(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeRecorder{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleListRuns_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := decodeError(t, rec).Code; got != "HIST001" {
		t.Errorf("code = %q, want HIST001", got)
	}
}

func TestHandleGetRun(t *testing.T) {
	recorder := &fakeRecorder{runs: []history.Run{{ID: "abc", Rows: 3}}}
	s := newTestServer(t, testConfig(t), recorder)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var run history.Run
	json.NewDecoder(rec.Body).Decode(&run)
	if run.Rows != 3 {
		t.Errorf("run = %+v, want Rows 3", run)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := decodeError(t, rec).Code; got != "HIST002" {
		t.Errorf("code = %q, want HIST002", got)
	}
}

func TestRespondError_Formats(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	t.Run("htmx fragment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("HX-Request", "true")
		rec := serve(s, req)

		if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("Content-Type = %q, want text/html", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "Code: HIST001") {
			t.Errorf("fragment = %q, want code", rec.Body.String())
		}
	})

	t.Run("browser gets text", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		rec := serve(s, req)

		if !strings.Contains(rec.Body.String(), "(HIST001)") {
			t.Errorf("body = %q, want plain message with code", rec.Body.String())
		}
	})
}
