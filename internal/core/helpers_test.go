package core

import (
	"bytes"
	"errors"
	"image"
	"os"
	"slices"
	"testing"
)

// testLayout renders uncompressed so tests can find text in the PDF.
func testLayout() Layout {
	l := DefaultLayout()
	l.Compress = false
	return l
}

// failOn encodes with Code 128 but rejects the listed values.
func failOn(bad ...string) Symbology {
	return SymbologyFunc(func(v string) (image.Image, error) {
		if slices.Contains(bad, v) {
			return nil, errors.New("unsupported character set")
		}
		return DefaultCode128.Encode(v)
	})
}

func newTestPipeline(t *testing.T, sym Symbology) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	return NewPipeline(Options{
		Layout:      testLayout(),
		Symbology:   sym,
		ArtifactDir: dir,
	}), dir
}

// assertDirEmpty fails when dir still holds files.
func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("%s not empty: %v", dir, names)
	}
}

// countHeaders counts row headers in an uncompressed PDF.
func countHeaders(pdf []byte) int {
	return bytes.Count(pdf, []byte("(Row "))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
