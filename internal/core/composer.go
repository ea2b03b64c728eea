package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// PlaceholderText fills the image cell of a field that could not be encoded.
const PlaceholderText = "Error generating barcode"

// RowComposer turns a Row into a RowBlock.
type RowComposer struct {
	encoder *FieldEncoder
	layout  Layout
	workers int
}

// NewRowComposer creates a composer. With workers > 1 the fields of a row
// are encoded in parallel; cell order always follows field order.
func NewRowComposer(encoder *FieldEncoder, layout Layout, workers int) *RowComposer {
	if workers < 1 {
		workers = 1
	}
	return &RowComposer{encoder: encoder, layout: layout, workers: workers}
}

// Compose builds the block for row. It never fails: a field that cannot be
// encoded becomes a placeholder cell, so a row whose fields all fail still
// yields a complete block.
func (c *RowComposer) Compose(ctx context.Context, row Row) (RowBlock, []FieldResult) {
	results := c.encodeAll(ctx, row.Fields)

	block := RowBlock{
		Index:  row.Index,
		Header: RowHeader(row),
		Images: make([]ImageCell, len(results)),
		Labels: make([]LabelCell, len(results)),
	}

	for i, res := range results {
		block.Images[i], block.Labels[i] = c.cells(res)
	}

	return block, results
}

// cells builds the image and label cell of one field as a pair.
func (c *RowComposer) cells(res FieldResult) (ImageCell, LabelCell) {
	if res.OK() {
		return ImageCell{
				Kind:     CellImage,
				Artifact: res.Artifact,
				Width:    c.layout.ImageWidth,
				Height:   c.layout.ImageHeight,
			}, LabelCell{
				Text:     res.Value,
				FontSize: c.layout.LabelFontSize,
			}
	}

	return ImageCell{
			Kind:   CellPlaceholder,
			Text:   PlaceholderText,
			Width:  c.layout.ImageWidth,
			Height: c.layout.ImageHeight,
		}, LabelCell{
			Text:     res.Value,
			FontSize: BodyFontSize,
		}
}

func (c *RowComposer) encodeAll(ctx context.Context, fields []string) []FieldResult {
	results := make([]FieldResult, len(fields))

	if c.workers == 1 || len(fields) < 2 {
		for i, v := range fields {
			results[i] = c.encoder.Encode(ctx, v)
		}
		return results
	}

	// Failures are data, so no goroutine returns an error. Each writes only
	// its own index.
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, v := range fields {
		i, v := i, v
		g.Go(func() error {
			results[i] = c.encoder.Encode(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RowHeader returns the sub-heading rendered above a row's table.
func RowHeader(row Row) string {
	return fmt.Sprintf("Row %d: %s", row.Index, row.Line)
}
