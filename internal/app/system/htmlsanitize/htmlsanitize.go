// internal/app/system/htmlsanitize/htmlsanitize.go
//
// Package htmlsanitize cleans user-supplied text before it is stored.
// Task descriptions may carry teacher-authored rich text; everything else
// (titles, feedback, notification messages) is reduced to plain text.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richOnce sync.Once
	rich     *bluemonday.Policy

	plainOnce sync.Once
	plain     *bluemonday.Policy
)

func richPolicy() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").OnElements("code", "pre", "table", "td", "th")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		rich = p
	})
	return rich
}

func plainPolicy() *bluemonday.Policy {
	plainOnce.Do(func() {
		plain = bluemonday.StrictPolicy()
	})
	return plain
}

// Sanitize keeps safe formatting markup and drops scripts, event handlers
// and javascript: URLs.
func Sanitize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return richPolicy().Sanitize(s)
}

// StripTags removes all markup and returns unescaped, trimmed text.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(plainPolicy().Sanitize(s)))
}
