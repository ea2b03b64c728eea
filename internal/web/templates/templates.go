// Package templates holds the HTML components of the upload page. The
// components are written in .templ files; run `templ generate` after editing
// them.
package templates

import "fmt"

// IndexData is rendered by Index.
type IndexData struct {
	Title       string
	MaxFileSize int64 // bytes
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d KB", max(n/1024, 1))
}
