package core

import (
	"time"
)

// Row is one non-blank input line split into its fields.
type Row struct {
	Index  int      // 1-based, counts only rows that yielded fields
	Line   string   // Trimmed source line, used in the row header
	Fields []string // Non-empty trimmed values in source order
}

// FieldStatus tags the outcome of encoding one field.
type FieldStatus int

const (
	FieldEncoded FieldStatus = iota
	FieldFailed
)

func (s FieldStatus) String() string {
	if s == FieldEncoded {
		return "encoded"
	}
	return "failed"
}

// FieldResult is the outcome of encoding one field. Value is always set so
// the label survives an encoding failure.
type FieldResult struct {
	Status   FieldStatus
	Value    string
	Artifact Artifact // Set when Status is FieldEncoded
	Err      error    // Set when Status is FieldFailed
}

// OK reports whether the field produced a barcode image.
func (r FieldResult) OK() bool {
	return r.Status == FieldEncoded
}

// CellKind distinguishes a barcode image from its fallback.
type CellKind int

const (
	CellImage CellKind = iota
	CellPlaceholder
)

// ImageCell is one cell of a block's image tier.
type ImageCell struct {
	Kind     CellKind
	Artifact Artifact // Set for CellImage
	Text     string   // Set for CellPlaceholder
	Width    float64
	Height   float64
}

// LabelCell is one cell of a block's label tier. Text is always centered.
type LabelCell struct {
	Text     string
	FontSize float64
}

// RowBlock is the rendering unit for one Row. Images and Labels always have
// one entry per field of the source row, in field order.
type RowBlock struct {
	Index  int
	Header string
	Images []ImageCell
	Labels []LabelCell
}

// Columns returns the number of table columns in the block.
func (b RowBlock) Columns() int {
	return len(b.Images)
}

// Phase indicates the current stage of a report run.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseParsing    Phase = "parsing"
	PhaseComposing  Phase = "composing"
	PhaseFinalizing Phase = "finalizing"
	PhaseCleanup    Phase = "cleanup"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// FieldFailure records a field that rendered as a placeholder.
type FieldFailure struct {
	Row    int    `json:"row"`
	Column int    `json:"column"` // 1-based
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Result summarizes a report run. It is returned on failure as well, with
// Phase set to PhaseFailed and Error describing the cause.
type Result struct {
	RunID              string         `json:"runId"`
	Phase              Phase          `json:"phase"`
	Input              string         `json:"input,omitempty"`
	Output             string         `json:"output,omitempty"`
	Rows               int            `json:"rows"`
	Fields             int            `json:"fields"`
	Encoded            int            `json:"encoded"`
	Failures           []FieldFailure `json:"failures,omitempty"`
	ArtifactsAllocated int            `json:"artifactsAllocated"`
	ArtifactsReleased  int            `json:"artifactsReleased"`
	Bytes              int64          `json:"bytes"`
	Duration           time.Duration  `json:"duration"`
	Error              string         `json:"error,omitempty"`
}

// Succeeded reports whether the run reached PhaseDone.
func (r *Result) Succeeded() bool {
	return r != nil && r.Phase == PhaseDone
}
