// Package textutil checks user-supplied text before it is stored. Text is
// kept exactly as given apart from surrounding whitespace.
package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows no markup at all.
var policy = bluemonday.StrictPolicy()

// Clean trims surrounding whitespace from s.
func Clean(s string) string {
	return strings.TrimSpace(s)
}

// HasMarkup reports whether s contains tags, comments or character
// references, i.e. anything the strict policy would strip or decode. Plain
// text such as "Tom & Jerry" or "size < 10cm" survives the policy unchanged.
func HasMarkup(s string) bool {
	return html.UnescapeString(policy.Sanitize(s)) != s
}

// TooLong reports whether s has more than limit characters.
func TooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}
