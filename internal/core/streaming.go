package core

// streaming.go provides the reader and writer wrappers used by the pipeline:
//
//   - newLineReader: skips a UTF-8 BOM (0xEF 0xBB 0xBF) written by Windows tools
//   - countingWriter: counts output bytes for the run summary

import (
	"bufio"
	"bytes"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newLineReader buffers r and discards a leading UTF-8 BOM.
func newLineReader(r io.Reader) *bufio.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// countingWriter wraps an io.Writer to track bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
