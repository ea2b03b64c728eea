package core

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "Helvetica"

// pageSizes lists the page sizes fpdf knows under these names.
var pageSizes = map[string]string{
	"a4":     "A4",
	"letter": "Letter",
}

// pdfRenderer lays out a document with fpdf. Blocks never split across
// pages: when a block does not fit the remaining space a new page starts.
type pdfRenderer struct {
	pdf    *fpdf.Fpdf
	layout Layout
	tr     func(string) string
}

// renderPDF renders the title and blocks into a complete PDF.
func renderPDF(layout Layout, title string, blocks []RowBlock) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("layout engine panic: %v", p)
		}
	}()

	size, ok := pageSizes[strings.ToLower(layout.PageSize)]
	if !ok {
		return nil, fmt.Errorf("unsupported page size %q", layout.PageSize)
	}

	pdf := fpdf.New("P", "pt", size, "")
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetAutoPageBreak(false, layout.Margin)
	pdf.SetCompression(layout.Compress)
	pdf.SetTitle(title, true)
	pdf.SetCreator("barcodereport", true)

	r := &pdfRenderer{
		pdf:    pdf,
		layout: layout,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}

	pdf.AddPage()
	r.title(title)
	for _, b := range blocks {
		r.block(b)
		if pdf.Err() {
			return nil, fmt.Errorf("row %d: %w", b.Index, pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *pdfRenderer) title(title string) {
	if title == "" {
		return
	}
	r.pdf.SetFont(fontFamily, "B", TitleFontSize)
	r.pdf.MultiCell(0, lineHeight(TitleFontSize), r.tr(title), "", "C", false)
	r.pdf.Ln(20)
}

func (r *pdfRenderer) block(b RowBlock) {
	pdf := r.pdf
	left, top, right, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()
	printable := pageW - left - right

	colW := r.layout.ColumnWidth
	imageRowH := r.layout.ImageHeight + 2*r.layout.CellPadding
	labelRowH := r.labelRowHeight(b.Labels, colW)

	header := r.wrap(b.Header, HeaderFontSize, "B", printable, maxHeaderLines)
	headerH := float64(len(header)) * lineHeight(HeaderFontSize)

	blockH := headerH + 10 + imageRowH + labelRowH
	if pdf.GetY()+blockH > pageH-bottom && pdf.GetY() > top {
		pdf.AddPage()
	}

	pdf.SetFont(fontFamily, "B", HeaderFontSize)
	for _, line := range header {
		pdf.SetX(left)
		pdf.CellFormat(printable, lineHeight(HeaderFontSize), string(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	y := pdf.GetY()
	pdf.SetLineWidth(1)
	for i := range b.Images {
		x := left + float64(i)*colW
		pdf.Rect(x, y, colW, imageRowH, "D")
		pdf.Rect(x, y+imageRowH, colW, labelRowH, "D")
		r.imageCell(b.Images[i], x, y, colW, imageRowH)
		r.textCell(b.Labels[i].Text, b.Labels[i].FontSize, x, y+imageRowH, colW, labelRowH)
	}

	pdf.SetXY(left, y+imageRowH+labelRowH+r.layout.RowGap)
}

// Wrapped text is cut at these line counts so a block always fits one page.
const (
	maxHeaderLines = 8
	maxCellLines   = 6
)

// wrap splits text into lines no wider than w and keeps at most maxLines,
// ending a cut line with an ellipsis.
func (r *pdfRenderer) wrap(text string, size float64, style string, w float64, maxLines int) [][]byte {
	r.pdf.SetFont(fontFamily, style, size)
	lines := r.pdf.SplitLines([]byte(r.tr(text)), max(w, 1))
	if len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	last := bytes.TrimRight(lines[maxLines-1], " ")
	last = last[:max(len(last)-3, 0)]
	lines[maxLines-1] = append(bytes.Clone(last), "..."...)
	return lines
}

func (r *pdfRenderer) labelRowHeight(labels []LabelCell, colW float64) float64 {
	inner := colW - 2*r.layout.CellPadding
	h := 0.0
	for _, l := range labels {
		lines := r.wrap(l.Text, l.FontSize, "", inner, maxCellLines)
		h = math.Max(h, float64(max(len(lines), 1))*lineHeight(l.FontSize))
	}
	return h + 2*r.layout.CellPadding
}

func (r *pdfRenderer) imageCell(c ImageCell, x, y, w, h float64) {
	if c.Kind == CellPlaceholder {
		r.textCell(c.Text, BodyFontSize, x, y, w, h)
		return
	}

	// Keep the configured aspect ratio when the padding leaves less room than the image.
	iw := math.Min(c.Width, w-2*r.layout.CellPadding)
	if iw <= 0 || c.Width <= 0 || c.Height <= 0 {
		return
	}
	ih := c.Height * iw / c.Width
	r.pdf.ImageOptions(c.Artifact.Path, x+(w-iw)/2, y+(h-ih)/2, iw, ih, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

// textCell draws text centered both ways inside the box.
func (r *pdfRenderer) textCell(text string, size, x, y, w, h float64) {
	pdf := r.pdf
	lh := lineHeight(size)
	lines := r.wrap(text, size, "", w-2*r.layout.CellPadding, maxCellLines)

	ty := y + (h-float64(len(lines))*lh)/2
	for _, line := range lines {
		pdf.SetXY(x, ty)
		pdf.CellFormat(w, lh, string(line), "", 0, "CM", false, 0, "")
		ty += lh
	}
}

func lineHeight(size float64) float64 {
	return size * 1.2
}
