package metadata

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Decode unescapes HTML entities (named and numeric) and then, only when a
// '%' is present, percent-decodes the result. A failed percent-decode, or one
// that yields invalid UTF-8, keeps the entity-decoded value.
func Decode(s string) string {
	if s == "" {
		return s
	}
	decoded := html.UnescapeString(s)
	if strings.Contains(decoded, "%") {
		if v, err := url.PathUnescape(decoded); err == nil && utf8.ValidString(v) {
			decoded = v
		}
	}
	return decoded
}
