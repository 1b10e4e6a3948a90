// internal/app/system/csvutil/report.go
package csvutil

import (
	"encoding/csv"
	"io"
	"strings"
)

// Writer emits CSV rows whose cells cannot be read as spreadsheet formulas.
type Writer struct {
	w *csv.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write writes one row.
func (w *Writer) Write(cells ...string) error {
	safe := make([]string, len(cells))
	for i, c := range cells {
		safe[i] = SafeCell(c)
	}
	return w.w.Write(safe)
}

// Flush writes buffered rows and reports any write error.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// SafeCell prefixes a quote to values a spreadsheet would evaluate.
func SafeCell(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
