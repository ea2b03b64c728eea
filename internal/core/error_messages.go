package core

// error_messages.go maps pipeline errors to user-friendly messages with codes
// for support reference.
//
//	IN001   - Input unavailable: the input file is missing or unreadable
//	          Action: Check the path, or run "barcodereport sample" to create one
//	ENC001  - Field encoding: a value cannot be represented as Code 128
//	          Action: Use printable ASCII, at most 80 characters per field
//	ART001  - Artifact write: a barcode image could not be stored
//	          Action: Check free space and permissions of the artifact directory
//	DOC001  - Finalize: the PDF could not be produced or written
//	          Action: Check that the output directory exists and is writable
//	DOC002  - Already finalized: a document was rendered twice
//	RPT001  - Too many reports: all render slots are busy
//	RPT002  - Cancelled: the run was cancelled before completion
//	FILE001 - File too large
//	FILE002 - No file provided
//	FILE003 - Input read error (line too long or I/O failure mid-read)
//	HIST001 - Run history disabled: no database configured
//	HIST002 - Run not found
//	ERR000  - Anything else; check the logs for the technical error

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInputUnavailable is fatal: the run aborts before any output exists.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrFieldEncoding marks a field the symbology rejected. Never fatal.
	ErrFieldEncoding = errors.New("barcode encoding failed")

	// ErrArtifactWrite marks a field whose image could not be stored. Never fatal.
	ErrArtifactWrite = errors.New("artifact write failed")

	// ErrDocumentFinalize is fatal: the output document was not produced.
	ErrDocumentFinalize = errors.New("document finalize failed")

	// ErrAlreadyFinalized is returned by a second Finalize on the same Document.
	ErrAlreadyFinalized = errors.New("document already finalized")

	// ErrInputRead marks a read failure after the input was opened.
	ErrInputRead = errors.New("input read failed")
)

// UserMessage contains user-friendly error information.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrInputUnavailable, UserMessage{
		Message: "Input file not found or unreadable",
		Action:  `Check the path, or run "barcodereport sample" to create one`,
		Code:    "IN001",
	}},
	{ErrFieldEncoding, UserMessage{
		Message: "Value cannot be encoded as a barcode",
		Action:  "Use printable ASCII, at most 80 characters per field",
		Code:    "ENC001",
	}},
	{ErrArtifactWrite, UserMessage{
		Message: "Barcode image could not be stored",
		Action:  "Check free space and permissions of the artifact directory",
		Code:    "ART001",
	}},
	{ErrAlreadyFinalized, UserMessage{
		Message: "Report was already rendered",
		Action:  "Start a new run",
		Code:    "DOC002",
	}},
	{ErrDocumentFinalize, UserMessage{
		Message: "Report document could not be written",
		Action:  "Check that the output directory exists and is writable",
		Code:    "DOC001",
	}},
	{ErrTooManyReports, UserMessage{
		Message: "Too many reports are being generated",
		Action:  "Please wait a moment before trying again",
		Code:    "RPT001",
	}},
	{ErrInputRead, UserMessage{
		Message: "Input file could not be read completely",
		Action:  "Check the file for extremely long lines or storage errors",
		Code:    "FILE003",
	}},
}

// patternMessages covers errors raised outside this package, matched
// case-insensitively against the error text.
var patternMessages = []struct {
	pattern string
	msg     UserMessage
}{
	{"context canceled", UserMessage{
		Message: "Report was cancelled",
		Action:  "Please try again",
		Code:    "RPT002",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Report was cancelled",
		Action:  "Try a smaller input file",
		Code:    "RPT002",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the input into smaller files",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a text file to upload",
		Code:    "FILE002",
	}},
	{"run history disabled", UserMessage{
		Message: "Run history is not available",
		Action:  "Set DATABASE_URL to record report runs",
		Code:    "HIST001",
	}},
	{"run not found", UserMessage{
		Message: "Report run not found",
		Action:  "Check the run ID",
		Code:    "HIST002",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors are matched with errors.Is; other errors by text pattern.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pm := range patternMessages {
		if strings.Contains(errStr, pm.pattern) {
			return pm.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
