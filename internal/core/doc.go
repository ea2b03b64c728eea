// Package core provides the business logic for barcode report generation.
//
// This package contains the whole report pipeline independent of any UI or
// transport layer. It is driven by the CLI and by the HTTP server without
// modification.
//
// # Pipeline
//
// A run moves through a fixed sequence of phases (see [Phase]):
//
//  1. The [LineScanner] reads the input and yields one [Row] per non-blank
//     line. Blank lines never consume a row number.
//  2. The [RowComposer] drives the [FieldEncoder] over every field of a row
//     and builds a [RowBlock]: an image tier and a label tier of equal width.
//  3. Blocks accumulate in a [Document], which is finalized once into a PDF.
//  4. Every transient barcode image allocated by the [ArtifactStore] is
//     released, on success and on failure alike.
//
// # Failure Isolation
//
// A field that cannot be encoded, or whose image cannot be written, becomes a
// [FieldResult] with status [FieldFailed] and renders as a placeholder. Only
// an unavailable input ([ErrInputUnavailable]) or a failed finalize
// ([ErrDocumentFinalize]) terminates a run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - IN001: Input file missing or unreadable
//   - ENC001, ART001: Per-field failures (reported, never fatal)
//   - DOC001-DOC002: Document rendering failures
//   - RPT001-RPT002: Server-side report limits
//   - FILE001-FILE003: Upload form errors
package core
