// internal/app/system/search/search.go
package search

import (
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Field picks which user field a free-text query should match. A query
// containing '@' is treated as an email fragment; anything else matches the
// folded full name.
func Field(q string) string {
	if strings.Contains(q, "@") {
		return "email"
	}
	return "full_name_ci"
}

// PrefixPattern returns an anchored, escaped regex matching values that start
// with q, normalized the same way the target field is stored. It returns ""
// for a blank query.
func PrefixPattern(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	if Field(q) == "email" {
		q = strings.ToLower(q)
	} else {
		q = text.Fold(q)
	}
	return "^" + regexp.QuoteMeta(q)
}
