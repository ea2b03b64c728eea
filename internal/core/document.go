package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Font sizes in points.
const (
	TitleFontSize  = 18.0
	HeaderFontSize = 13.0
	BodyFontSize   = 10.0
)

// Layout holds page geometry in PDF points.
type Layout struct {
	PageSize      string // "A4" or "Letter"
	ColumnWidth   float64
	ImageWidth    float64
	ImageHeight   float64
	LabelFontSize float64
	RowGap        float64
	Margin        float64
	CellPadding   float64
	Compress      bool // Deflate page content streams
}

// DefaultLayout returns the fixed report layout: A4, 2.7in columns holding
// 2.5in x 0.7in barcodes, 8pt labels and a 20pt gap between rows.
func DefaultLayout() Layout {
	return Layout{
		PageSize:      "A4",
		ColumnWidth:   194.4,
		ImageWidth:    180,
		ImageHeight:   50.4,
		LabelFontSize: 8,
		RowGap:        20,
		Margin:        72,
		CellPadding:   5,
		Compress:      true,
	}
}

// Document accumulates the title and row blocks of a report and renders them
// once. It is safe for concurrent use.
type Document struct {
	layout Layout

	mu        sync.Mutex
	title     string
	blocks    []RowBlock
	finalized bool
}

// NewDocument creates an empty document.
func NewDocument(layout Layout) *Document {
	return &Document{layout: layout}
}

// AddTitle sets the title rendered once at the top of the first page.
func (d *Document) AddTitle(title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finalized {
		return ErrAlreadyFinalized
	}
	d.title = title
	return nil
}

// AddRow appends a block after the ones already added.
func (d *Document) AddRow(b RowBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finalized {
		return ErrAlreadyFinalized
	}
	d.blocks = append(d.blocks, b)
	return nil
}

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

// Blocks returns a copy of the appended blocks.
func (d *Document) Blocks() []RowBlock {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RowBlock, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Finalize renders the document and writes it to w. The whole document is
// rendered in memory first so a layout failure writes nothing. It may be
// called once; later calls return ErrAlreadyFinalized.
func (d *Document) Finalize(w io.Writer) error {
	d.mu.Lock()
	if d.finalized {
		d.mu.Unlock()
		return ErrAlreadyFinalized
	}
	d.finalized = true
	title, blocks := d.title, d.blocks
	d.mu.Unlock()

	data, err := renderPDF(d.layout, title, blocks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocumentFinalize, err)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write: %w", ErrDocumentFinalize, err)
	}
	return nil
}

// WriteFile finalizes into path. The PDF is written to a temporary file in
// the same directory and renamed into place, so a failure leaves no partial
// output behind. Returns the number of bytes written.
func (d *Document) WriteFile(path string) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDocumentFinalize, err)
	}
	tmpPath := tmp.Name()

	cw := &countingWriter{w: tmp}
	if err := d.Finalize(cw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: chmod: %w", ErrDocumentFinalize, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: close: %w", ErrDocumentFinalize, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: rename: %w", ErrDocumentFinalize, err)
	}

	return cw.n, nil
}
