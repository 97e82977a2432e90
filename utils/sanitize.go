package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxDisplayName = 64

var sanitizer = bluemonday.StrictPolicy()

// DisplayName strips markup from a transport-supplied name and bounds its
// length. Whitespace runs collapse to one space. Empty input stays empty.
func DisplayName(input string) string {
	clean := html.UnescapeString(sanitizer.Sanitize(input))
	clean = strings.Join(strings.Fields(clean), " ")
	if utf8.RuneCountInString(clean) > maxDisplayName {
		clean = string([]rune(clean)[:maxDisplayName])
	}
	return clean
}
