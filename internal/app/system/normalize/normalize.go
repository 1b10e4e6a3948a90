// Package normalize trims and canonicalizes user input before it is
// validated or stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses internal whitespace. Case is kept.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Folded returns the case- and diacritic-insensitive form stored in *_ci
// fields for sorting and search.
func Folded(s string) string {
	return text.Fold(Name(s))
}

// Role trims and lowercases a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value. Case is kept.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// FilterID trims an id filter from the query string; the value "all"
// (any case) means no filter and yields "".
func FilterID(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}
