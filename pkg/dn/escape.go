package dn

import (
	"fmt"
	"strings"
	"unicode"
)

// dnSpecials are characters that must be escaped anywhere inside a DN
// attribute value (RFC 4514). Backslash is handled separately with a
// hex escape so escaped output survives a second parse unambiguously.
const dnSpecials = `,+"<>;=`

// EscapeValue hex-escapes DN metacharacters in an attribute value so it
// can be embedded in a DN. Leading '#', leading and trailing spaces get
// the same treatment.
func EscapeValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	for i, r := range value {
		switch {
		case r == '\\':
			b.WriteString("\\5c")
		case strings.ContainsRune(dnSpecials, r):
			b.WriteString(fmt.Sprintf("\\%c", r))
		case r == ' ' && (i == 0 || i == len(value)-1):
			b.WriteString("\\20")
		case r == '#' && i == 0:
			b.WriteString("\\23")
		case r < 0x20 || r == 0x7f:
			b.WriteString(fmt.Sprintf("\\%02X", r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeFilter hex-escapes LDAP search filter metacharacters (RFC 4515)
// so untrusted values cannot alter filter structure.
func EscapeFilter(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*':
			b.WriteString("\\2a")
		case '(':
			b.WriteString("\\28")
		case ')':
			b.WriteString("\\29")
		case '\\':
			b.WriteString("\\5c")
		case 0:
			b.WriteString("\\00")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// invisibleRunes are zero-width and directional characters that render
// as nothing but change the identity of a value.
var invisibleRunes = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // BOM / zero width no-break space
	'\u00ad': true, // soft hyphen
	'\u180e': true, // mongolian vowel separator
}

// ValidateValue rejects values that are empty, whitespace-only, or
// contain control or invisible characters. The field name is carried in
// the error for operator-facing diagnostics.
func ValidateValue(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: value is empty or whitespace-only", field)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s: value contains control character U+%04X", field, r)
		}
		if invisibleRunes[r] {
			return fmt.Errorf("%s: value contains invisible character U+%04X", field, r)
		}
	}
	return nil
}
