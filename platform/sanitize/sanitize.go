// Package sanitize strips markup from free text entered by staff and
// prospective participants before it is stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	inlineSpaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer   = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
	)
)

// StripHTML removes tags, decodes the common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text is used for multi-line fields such as researcher notes and
// messages. Line breaks are preserved.
func Text(s string) string {
	return StripHTML(s)
}

// Line is used for single-line fields such as names. Runs of whitespace,
// including newlines, collapse to one space.
func Line(s string) string {
	return inlineSpaceRegex.ReplaceAllString(StripHTML(s), " ")
}
