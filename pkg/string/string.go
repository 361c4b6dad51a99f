// Package string holds the small text helpers request types share.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims each pointed-to string in place.
func TrimStrings(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// ToSnakeCase spells a Go field name the way JSON bodies do:
// DocumentName becomes document_name and RequestID becomes request_id.
func ToSnakeCase(name string) string {
	runes := []rune(name)
	out := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && opensWord(runes, i) {
			out = append(out, '_')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// opensWord reports whether the capital at i starts a word. That is the case
// after a lower-case rune, or at the last capital of an acronym that runs into
// a lower-case word.
func opensWord(runes []rune, i int) bool {
	if unicode.IsLower(runes[i-1]) {
		return true
	}
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
