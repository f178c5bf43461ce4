// Package phone normalizes and validates imported contact numbers.
package phone

import (
	"regexp"
	"strings"
	"unicode"
)

var tenDigits = regexp.MustCompile(`^[0-9]{10}$`)

// Normalize strips every non-digit character from the trimmed input.
func Normalize(input string) string {
	trimmed := strings.TrimSpace(input)
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether a normalized contact is exactly ten digits.
func IsValid(normalized string) bool {
	return tenDigits.MatchString(normalized)
}

// NormalizeAndValidate returns the normalized contact and whether it is usable.
func NormalizeAndValidate(input string) (string, bool) {
	n := Normalize(input)
	return n, IsValid(n)
}

// IsBlank reports whether the input has no visible characters.
func IsBlank(input string) bool {
	return strings.IndexFunc(input, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
