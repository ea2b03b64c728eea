package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/barcodereport/internal/config"
	"github.com/JonMunkholm/barcodereport/internal/logging"
	"github.com/google/uuid"
)

// DefaultTitle is rendered at the top of every report unless overridden.
const DefaultTitle = "Barcode Report"

// ContextCheckInterval is how often (in rows) the driver checks for cancellation.
var ContextCheckInterval = 50

// Options configures a Pipeline.
type Options struct {
	Title       string
	Layout      Layout
	Symbology   Symbology
	ArtifactDir string // Empty means the OS temp dir
	Workers     int    // Parallel field encoders per row
}

// OptionsFromConfig builds pipeline options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	layout := DefaultLayout()
	layout.PageSize = cfg.Layout.PageSize
	layout.ColumnWidth = cfg.Layout.ColumnWidth
	layout.ImageWidth = cfg.Layout.ImageWidth
	layout.ImageHeight = cfg.Layout.ImageHeight
	layout.LabelFontSize = cfg.Layout.LabelFontSize
	layout.RowGap = cfg.Layout.RowGap

	return Options{
		Title:  cfg.Report.Title,
		Layout: layout,
		Symbology: Code128{
			ModuleWidth: cfg.Barcode.ModuleWidth,
			BarHeight:   cfg.Barcode.BarHeight,
		},
		ArtifactDir: cfg.Report.ArtifactDir,
		Workers:     cfg.Report.Workers,
	}
}

// Pipeline drives report runs: parse, encode, compose, assemble, clean up.
// A Pipeline holds no per-run state and may run concurrently.
type Pipeline struct {
	opts Options
}

// NewPipeline creates a pipeline, filling unset options with defaults.
func NewPipeline(opts Options) *Pipeline {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout()
	}
	if opts.Symbology == nil {
		opts.Symbology = DefaultCode128
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{opts: opts}
}

// Generate reads inputPath and writes the report to outputPath.
//
// A missing or unreadable input fails with ErrInputUnavailable before any
// output exists. A finalize failure returns ErrDocumentFinalize and leaves no
// partial output file. The returned Result is never nil.
func (p *Pipeline) Generate(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	run := p.newRun(ctx)
	run.result.Input = inputPath
	run.result.Output = outputPath

	f, err := os.Open(inputPath)
	if err != nil {
		return run.fail(fmt.Errorf("%w: %w", ErrInputUnavailable, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return run.fail(fmt.Errorf("%w: %w", ErrInputUnavailable, err))
	}
	if !info.Mode().IsRegular() {
		return run.fail(fmt.Errorf("%w: %s is not a regular file", ErrInputUnavailable, inputPath))
	}

	return run.execute(f, func(doc *Document) (int64, error) {
		return doc.WriteFile(outputPath)
	})
}

// Build runs the pipeline over streams. Nothing is written to w unless the
// whole document rendered.
func (p *Pipeline) Build(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	run := p.newRun(ctx)
	if r == nil {
		return run.fail(fmt.Errorf("%w: no reader", ErrInputUnavailable))
	}

	return run.execute(r, func(doc *Document) (int64, error) {
		cw := &countingWriter{w: w}
		err := doc.Finalize(cw)
		return cw.n, err
	})
}

// run carries the state of one pipeline execution.
type run struct {
	p      *Pipeline
	ctx    context.Context
	start  time.Time
	result *Result
}

func (p *Pipeline) newRun(ctx context.Context) *run {
	runID := uuid.NewString()
	return &run{
		p:     p,
		ctx:   logging.ContextWithRunID(ctx, runID),
		start: time.Now(),
		result: &Result{
			RunID: runID,
			Phase: PhaseInit,
		},
	}
}

// execute moves through parsing, composing and finalizing. Cleanup of every
// allocated artifact runs exactly once, whichever way execute returns.
func (r *run) execute(input io.Reader, finalize func(*Document) (int64, error)) (res *Result, err error) {
	logger := logging.FromContext(r.ctx)
	store := NewArtifactStore(r.ctx, r.p.opts.ArtifactDir)

	defer func() {
		r.result.Phase = PhaseCleanup
		r.result.ArtifactsAllocated = store.Allocated()
		store.ReleaseAll()
		r.result.ArtifactsReleased = store.Released()
		if err != nil {
			res, err = r.fail(err)
			return
		}
		r.result.Phase = PhaseDone
		r.result.Duration = time.Since(r.start)
		logger.Info("report generated",
			"output", r.result.Output,
			"rows", r.result.Rows,
			"fields", r.result.Fields,
			"failed_fields", len(r.result.Failures),
			"bytes", r.result.Bytes,
			"duration_ms", r.result.Duration.Milliseconds(),
		)
	}()

	encoder := NewFieldEncoder(r.p.opts.Symbology, store)
	composer := NewRowComposer(encoder, r.p.opts.Layout, r.p.opts.Workers)

	doc := NewDocument(r.p.opts.Layout)
	if err := doc.AddTitle(r.p.opts.Title); err != nil {
		return nil, err
	}

	r.result.Phase = PhaseParsing
	sc := NewLineScanner(input)
	for sc.Next() {
		row := sc.Row()

		if row.Index%ContextCheckInterval == 0 {
			if err := r.ctx.Err(); err != nil {
				return nil, fmt.Errorf("cancelled at row %d: %w", row.Index, err)
			}
		}

		r.result.Phase = PhaseComposing
		block, fields := composer.Compose(r.ctx, row)
		r.record(row, fields)
		if err := doc.AddRow(block); err != nil {
			return nil, err
		}
		r.result.Phase = PhaseParsing
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	r.result.Phase = PhaseFinalizing
	n, err := finalize(doc)
	if err != nil {
		return nil, err
	}
	r.result.Bytes = n

	return r.result, nil
}

// record adds one row's field outcomes to the result.
func (r *run) record(row Row, fields []FieldResult) {
	r.result.Rows++
	for i, f := range fields {
		r.result.Fields++
		if f.OK() {
			r.result.Encoded++
			continue
		}
		r.result.Failures = append(r.result.Failures, FieldFailure{
			Row:    row.Index,
			Column: i + 1,
			Value:  f.Value,
			Reason: f.Err.Error(),
		})
	}
}

// fail marks the run failed. Fatal errors are the only ones logged at ERROR.
func (r *run) fail(err error) (*Result, error) {
	r.result.Phase = PhaseFailed
	r.result.Error = err.Error()
	r.result.Duration = time.Since(r.start)

	msg := "report failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "report cancelled"
	}
	logging.FromContext(r.ctx).Error(msg,
		"input", r.result.Input,
		"output", r.result.Output,
		"code", MapError(err).Code,
		"error", err,
	)
	return r.result, err
}
