// internal/app/system/csvutil/mastery.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dalemusser/questhub/internal/app/system/inputval"
)

// ErrTooManyRows is returned when a file has more data rows than allowed.
var ErrTooManyRows = errors.New("too many rows")

// ParseOptions tunes ParseMasteryCSV. MaxRows 0 means unlimited.
type ParseOptions struct {
	MaxRows int
}

// DefaultParseOptions caps the row count at MaxRows.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{MaxRows: MaxRows}
}

// MasteryRow is one normalized "email, subject, score" line.
type MasteryRow struct {
	Email   string
	Subject string
	Score   float64
}

// RowError describes a rejected line. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Reason string
	Raw    []string
}

// ParseResult holds the accepted rows and the rejected ones.
type ParseResult struct {
	Rows   []MasteryRow
	Errors []RowError
}

// HasErrors reports whether any line was rejected.
func (r *ParseResult) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// Summary renders the first maxShow errors as a single message.
func (r *ParseResult) Summary(maxShow int) string {
	if !r.HasErrors() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Import rejected: %d row(s) are invalid.", len(r.Errors))
	n := len(r.Errors)
	if maxShow > 0 && n > maxShow {
		n = maxShow
	}
	for _, e := range r.Errors[:n] {
		fmt.Fprintf(&b, " Line %d: %s.", e.Line, e.Reason)
	}
	if rest := len(r.Errors) - n; rest > 0 {
		fmt.Fprintf(&b, " ...and %d more.", rest)
	}
	return b.String()
}

// ParseMasteryCSV reads "Email,Subject,Score" rows. A header row is
// detected and skipped, as is a UTF-8 BOM. Emails and subjects are
// lower-cased; a repeated email/subject pair is an error. Nothing is
// written anywhere, so it is safe to call before any mutation.
func ParseMasteryCSV(r io.Reader, opts ParseOptions) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	res := &ParseResult{}
	seen := map[string]int{}
	line, data := 0, 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: "unreadable row"})
			continue
		}
		if line == 1 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if isHeader(rec) {
				continue
			}
		}
		if blank(rec) {
			continue
		}
		data++
		if opts.MaxRows > 0 && data > opts.MaxRows {
			return nil, ErrTooManyRows
		}

		row, reason := normalize(rec)
		if reason == "" {
			key := row.Email + "\x00" + row.Subject
			if first, dup := seen[key]; dup {
				reason = fmt.Sprintf("duplicate of line %d", first)
			} else {
				seen[key] = line
			}
		}
		if reason != "" {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: reason, Raw: rec})
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func isHeader(rec []string) bool {
	return len(rec) >= 2 &&
		strings.EqualFold(strings.TrimSpace(rec[0]), "email") &&
		strings.EqualFold(strings.TrimSpace(rec[1]), "subject")
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalize(rec []string) (MasteryRow, string) {
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	row := MasteryRow{
		Email:   strings.ToLower(cell(0)),
		Subject: strings.ToLower(cell(1)),
	}
	switch {
	case row.Email == "":
		return row, "missing email"
	case !inputval.IsValidEmail(row.Email):
		return row, "invalid email"
	case row.Subject == "":
		return row, "missing subject"
	case !ValidSubject(row.Subject):
		return row, "subject may not contain '.' or start with '$'"
	case cell(2) == "":
		return row, "missing score"
	}
	score, err := strconv.ParseFloat(cell(2), 64)
	if err != nil {
		return row, "score is not a number"
	}
	if score < MinScore || score > MaxScore {
		return row, fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore)
	}
	row.Score = score
	return row, ""
}

// ValidSubject reports whether s can be used as a mastery map key.
func ValidSubject(s string) bool {
	return s != "" && !strings.Contains(s, ".") && !strings.HasPrefix(s, "$")
}
