package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestPipeline_SingleRow(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)
	input := writeInput(t, "A1,B2\n")
	output := filepath.Join(t.TempDir(), "report.pdf")

	res, err := p.Generate(context.Background(), input, output)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if res.Phase != PhaseDone || !res.Succeeded() {
		t.Errorf("Phase = %v, want %v", res.Phase, PhaseDone)
	}
	if res.Rows != 1 || res.Fields != 2 || res.Encoded != 2 {
		t.Errorf("rows/fields/encoded = %d/%d/%d, want 1/2/2", res.Rows, res.Fields, res.Encoded)
	}

	pdf, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if res.Bytes != int64(len(pdf)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(pdf))
	}
	for _, want := range []string{"(Row 1: A1,B2)", "(A1)", "(B2)"} {
		if !bytes.Contains(pdf, []byte(want)) {
			t.Errorf("PDF missing %s", want)
		}
	}
	if got := bytes.Count(pdf, []byte("/Subtype /Image")); got != 2 {
		t.Errorf("embedded images = %d, want 2", got)
	}

	if res.ArtifactsAllocated != 2 || res.ArtifactsReleased != 2 {
		t.Errorf("artifacts allocated/released = %d/%d, want 2/2", res.ArtifactsAllocated, res.ArtifactsReleased)
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_AllBlankInput(t *testing.T) {
	p, _ := newTestPipeline(t, DefaultCode128)

	var out bytes.Buffer
	res, err := p.Build(context.Background(), strings.NewReader("\n\n"), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if res.Rows != 0 {
		t.Errorf("Rows = %d, want 0", res.Rows)
	}
	if !bytes.Contains(out.Bytes(), []byte("(Barcode Report)")) {
		t.Error("title-only document missing title")
	}
	if got := countHeaders(out.Bytes()); got != 0 {
		t.Errorf("row headers = %d, want 0", got)
	}
}

func TestPipeline_EmptyFieldsDropped(t *testing.T) {
	p, _ := newTestPipeline(t, DefaultCode128)

	var out bytes.Buffer
	res, err := p.Build(context.Background(), strings.NewReader("X,,Y\n"), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if res.Fields != 2 {
		t.Errorf("Fields = %d, want 2", res.Fields)
	}
	if !bytes.Contains(out.Bytes(), []byte("(Row 1: X,,Y)")) {
		t.Error("header should carry the source line")
	}
	if got := bytes.Count(out.Bytes(), []byte("/Subtype /Image")); got != 2 {
		t.Errorf("embedded images = %d, want 2", got)
	}
}

func TestPipeline_MissingInput(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)
	output := filepath.Join(t.TempDir(), "report.pdf")

	res, err := p.Generate(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), output)
	if !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrInputUnavailable", err)
	}
	if res == nil || res.Phase != PhaseFailed {
		t.Fatalf("Result = %+v, want failed phase", res)
	}
	if res.Error == "" {
		t.Error("Result.Error empty on failure")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output written for missing input (stat err = %v)", err)
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_FieldFailureIsolated(t *testing.T) {
	p, artifacts := newTestPipeline(t, failOn("BAD"))
	input := writeInput(t, "GOOD,BAD\nNEXT\n")
	output := filepath.Join(t.TempDir(), "report.pdf")

	res, err := p.Generate(context.Background(), input, output)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if res.Rows != 2 || res.Encoded != 2 {
		t.Errorf("rows/encoded = %d/%d, want 2/2", res.Rows, res.Encoded)
	}
	want := []FieldFailure{{Row: 1, Column: 2, Value: "BAD"}}
	if diff := cmp.Diff(want, res.Failures, cmpopts.IgnoreFields(FieldFailure{}, "Reason")); diff != "" {
		t.Errorf("Failures mismatch (-want +got):\n%s", diff)
	}

	pdf, _ := os.ReadFile(output)
	if got := bytes.Count(pdf, []byte("/Subtype /Image")); got != 2 {
		t.Errorf("embedded images = %d, want 2", got)
	}
	for _, want := range []string{"(" + PlaceholderText + ")", "(BAD)", "(Row 2: NEXT)"} {
		if !bytes.Contains(pdf, []byte(want)) {
			t.Errorf("PDF missing %s", want)
		}
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_HeaderCountMatchesRows(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"a\n\nb\n",
		" , ,\nx,y\n\t\n,z,\n",
		"1,2,3\n4,5,6\n7,8,9\n,,\n10\n",
	}

	for i, in := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			p, _ := newTestPipeline(t, DefaultCode128)

			rows, err := ParseAll(strings.NewReader(in))
			if err != nil {
				t.Fatalf("ParseAll() error = %v", err)
			}

			var out bytes.Buffer
			res, err := p.Build(context.Background(), strings.NewReader(in), &out)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if res.Rows != len(rows) {
				t.Errorf("Rows = %d, want %d", res.Rows, len(rows))
			}
			if got := countHeaders(out.Bytes()); got != len(rows) {
				t.Errorf("row headers = %d, want %d", got, len(rows))
			}
		})
	}
}

func TestPipeline_FinalizeFailureReleasesArtifacts(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)
	input := writeInput(t, "A1,B2\nC3\n")
	output := filepath.Join(t.TempDir(), "missing-dir", "report.pdf")

	res, err := p.Generate(context.Background(), input, output)
	if !errors.Is(err, ErrDocumentFinalize) {
		t.Fatalf("Generate() error = %v, want ErrDocumentFinalize", err)
	}
	if res.Phase != PhaseFailed {
		t.Errorf("Phase = %v, want %v", res.Phase, PhaseFailed)
	}
	if res.ArtifactsAllocated != 3 || res.ArtifactsReleased != 3 {
		t.Errorf("artifacts allocated/released = %d/%d, want 3/3", res.ArtifactsAllocated, res.ArtifactsReleased)
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_BuildWriterFailure(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)

	_, err := p.Build(context.Background(), strings.NewReader("A1\n"), failingWriter{})
	if !errors.Is(err, ErrDocumentFinalize) {
		t.Fatalf("Build() error = %v, want ErrDocumentFinalize", err)
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_Cancelled(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	res, err := p.Build(ctx, strings.NewReader("A1\nB2\n"), &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
	if res.Phase != PhaseFailed {
		t.Errorf("Phase = %v, want %v", res.Phase, PhaseFailed)
	}
	if out.Len() != 0 {
		t.Errorf("Build() wrote %d bytes after cancellation", out.Len())
	}
	assertDirEmpty(t, artifacts)
}

func TestPipeline_ParallelWorkers(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(Options{
		Layout:      testLayout(),
		Symbology:   failOn("c"),
		ArtifactDir: dir,
		Workers:     4,
	})

	var out bytes.Buffer
	res, err := p.Build(context.Background(), strings.NewReader("a,b,c,d,e,f\n"), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Encoded != 5 || len(res.Failures) != 1 || res.Failures[0].Column != 3 {
		t.Errorf("encoded=%d failures=%+v, want 5 and column 3", res.Encoded, res.Failures)
	}
	assertDirEmpty(t, dir)
}

func TestPipeline_SampleInput(t *testing.T) {
	p, _ := newTestPipeline(t, DefaultCode128)

	var out bytes.Buffer
	res, err := p.Build(context.Background(), strings.NewReader(SampleInput), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Rows != 2 || res.Fields != 6 || res.Encoded != 6 {
		t.Errorf("rows/fields/encoded = %d/%d/%d, want 2/6/6", res.Rows, res.Fields, res.Encoded)
	}
}

func TestPipeline_ArtifactWriteFailureAccounting(t *testing.T) {
	p := NewPipeline(Options{
		Layout:      testLayout(),
		Symbology:   DefaultCode128,
		ArtifactDir: filepath.Join(t.TempDir(), "missing"),
	})

	var out bytes.Buffer
	res, err := p.Build(context.Background(), strings.NewReader("A1,B2\n"), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Encoded != 0 || len(res.Failures) != 2 {
		t.Errorf("encoded=%d failures=%d, want 0 and 2", res.Encoded, len(res.Failures))
	}
	if res.ArtifactsAllocated != 2 || res.ArtifactsReleased != 2 {
		t.Errorf("artifacts allocated/released = %d/%d, want 2/2", res.ArtifactsAllocated, res.ArtifactsReleased)
	}
}

func TestPipeline_DirectoryInput(t *testing.T) {
	p, artifacts := newTestPipeline(t, DefaultCode128)
	dir := t.TempDir()
	output := filepath.Join(dir, "report.pdf")

	res, err := p.Generate(context.Background(), dir, output)
	if !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrInputUnavailable", err)
	}
	if got := MapError(err).Code; got != "IN001" {
		t.Errorf("MapError code = %s, want IN001", got)
	}
	if res.Phase != PhaseFailed {
		t.Errorf("Phase = %v, want %v", res.Phase, PhaseFailed)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output written for directory input (stat err = %v)", err)
	}
	assertDirEmpty(t, artifacts)
}
