package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/JonMunkholm/barcodereport/internal/logging"
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

// Symbology turns a value into a barcode bitmap.
type Symbology interface {
	Encode(value string) (image.Image, error)
}

// SymbologyFunc adapts a function to Symbology.
type SymbologyFunc func(value string) (image.Image, error)

// Encode calls f(value).
func (f SymbologyFunc) Encode(value string) (image.Image, error) {
	return f(value)
}

// Code128 renders Code 128 symbols. Each bar module is ModuleWidth pixels
// wide and BarHeight pixels tall.
type Code128 struct {
	ModuleWidth int
	BarHeight   int
}

// DefaultCode128 matches the default BARCODE_* configuration.
var DefaultCode128 = Code128{ModuleWidth: 2, BarHeight: 100}

// Encode implements Symbology.
func (c Code128) Encode(value string) (image.Image, error) {
	bc, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}

	module, height := c.ModuleWidth, c.BarHeight
	if module <= 0 {
		module = DefaultCode128.ModuleWidth
	}
	if height <= 0 {
		height = DefaultCode128.BarHeight
	}

	return barcode.Scale(bc, bc.Bounds().Dx()*module, height)
}

// FieldEncoder produces one artifact per encodable field and converts every
// failure into a FieldFailed result.
type FieldEncoder struct {
	symbology Symbology
	store     *ArtifactStore
}

// NewFieldEncoder creates an encoder writing into store.
func NewFieldEncoder(symbology Symbology, store *ArtifactStore) *FieldEncoder {
	return &FieldEncoder{symbology: symbology, store: store}
}

// Encode never returns an error; failures come back as FieldFailed results
// carrying the original value.
func (e *FieldEncoder) Encode(ctx context.Context, value string) FieldResult {
	img, err := e.render(value)
	if err != nil {
		logging.FromContext(ctx).Warn("barcode encoding failed", "value", value, "error", err)
		return FieldResult{
			Status: FieldFailed,
			Value:  value,
			Err:    fmt.Errorf("%w for %q: %w", ErrFieldEncoding, value, err),
		}
	}

	a, err := e.store.Allocate()
	if err != nil {
		return e.writeFailed(ctx, value, a, err)
	}
	if err := e.store.Write(a, img); err != nil {
		return e.writeFailed(ctx, value, a, err)
	}

	return FieldResult{Status: FieldEncoded, Value: value, Artifact: a}
}

func (e *FieldEncoder) writeFailed(ctx context.Context, value string, a Artifact, err error) FieldResult {
	e.store.Release(a)
	logging.FromContext(ctx).Warn("barcode image write failed", "value", value, "error", err)
	return FieldResult{
		Status: FieldFailed,
		Value:  value,
		Err:    fmt.Errorf("%w for %q: %w", ErrArtifactWrite, value, err),
	}
}

// render runs the symbology and PNG-encodes its bitmap. A panicking
// symbology is reported as an ordinary error.
func (e *FieldEncoder) render(value string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("symbology panic: %v", r)
		}
	}()

	img, err := e.symbology.Encode(value)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("symbology returned no image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, toGray(img)); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// toGray flattens img to 8-bit grayscale. The PDF writer rejects 16-bit PNGs,
// which is what a Gray16 symbol would encode to.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
