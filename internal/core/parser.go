package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// FieldDelimiter separates fields within an input line.
const FieldDelimiter = ","

// MaxLineLength bounds a single input line. Longer lines fail the scan.
const MaxLineLength = 1 << 20

// ParseLine splits line into trimmed, non-empty fields in source order.
// It returns false when the line is blank or every field is empty.
func ParseLine(line string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	parts := strings.Split(line, FieldDelimiter)
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}

	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// LineScanner yields the Rows of an input stream. Row numbers are assigned
// only to lines that produce at least one field.
//
//	sc := NewLineScanner(f)
//	for sc.Next() {
//	    row := sc.Row()
//	}
//	if err := sc.Err(); err != nil { ... }
type LineScanner struct {
	scanner *bufio.Scanner
	row     Row
	next    int // index the next accepted row receives
	line    int // physical line number, for diagnostics
	err     error
}

// NewLineScanner reads r line by line. A leading UTF-8 BOM is skipped and
// invalid UTF-8 sequences are replaced with '?'.
func NewLineScanner(r io.Reader) *LineScanner {
	sc := bufio.NewScanner(newLineReader(r))
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	sc.Split(scanLines)
	return &LineScanner{scanner: sc, next: 1}
}

// Next advances to the next non-blank row. It returns false at end of input
// or on a read error; check Err afterwards.
func (s *LineScanner) Next() bool {
	for s.scanner.Scan() {
		s.line++
		raw := strings.ToValidUTF8(s.scanner.Text(), "?")

		fields, ok := ParseLine(raw)
		if !ok {
			continue
		}

		s.row = Row{
			Index:  s.next,
			Line:   strings.TrimSpace(raw),
			Fields: fields,
		}
		s.next++
		return true
	}

	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("%w: after line %d: %w", ErrInputRead, s.line, err)
	}
	return false
}

// Row returns the row produced by the last successful Next.
func (s *LineScanner) Row() Row {
	return s.row
}

// Err returns the first read error, if any.
func (s *LineScanner) Err() error {
	return s.err
}

// scanLines is bufio.ScanLines that also ends a line at a lone '\r'.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// Need the next byte to tell "\r\n" from a lone '\r'.
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ParseAll collects every Row of r. Intended for previews and tests.
func ParseAll(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := NewLineScanner(r)
	for sc.Next() {
		rows = append(rows, sc.Row())
	}
	return rows, sc.Err()
}
