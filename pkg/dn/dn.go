package dn

import (
	"strings"
)

// Parse splits a DN into its RDN components on unescaped commas.
// Components keep their escaping; surrounding whitespace is trimmed.
func Parse(dn string) []string {
	if dn == "" {
		return nil
	}

	var components []string
	var current strings.Builder
	escaped := false

	for _, r := range dn {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			current.WriteRune(r)
			escaped = true
		case r == ',':
			components = append(components, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	components = append(components, strings.TrimSpace(current.String()))

	return components
}

// RDN returns the first (leftmost) component of a DN.
func RDN(dn string) string {
	components := Parse(dn)
	if len(components) == 0 {
		return ""
	}
	return components[0]
}

// Parent returns the DN with its first component removed. A
// single-component DN is considered its own parent and is returned
// unchanged.
func Parent(dn string) string {
	components := Parse(dn)
	if len(components) <= 1 {
		return dn
	}
	return strings.Join(components[1:], ",")
}

// Normalize lowercases a DN and strips whitespace around component
// separators so that DNs compare reliably.
func Normalize(dn string) string {
	components := Parse(dn)
	for i, c := range components {
		components[i] = strings.ToLower(c)
	}
	return strings.Join(components, ",")
}

// Equal reports whether two DNs name the same entry, ignoring case and
// separator whitespace.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// IsChildOf reports whether dn strictly, properly descends from
// ancestor. A DN is never a child of itself.
func IsChildOf(dn, ancestor string) bool {
	child := Parse(dn)
	parent := Parse(ancestor)

	if len(parent) == 0 || len(child) <= len(parent) {
		return false
	}

	offset := len(child) - len(parent)
	for i, c := range parent {
		if !strings.EqualFold(child[offset+i], c) {
			return false
		}
	}
	return true
}

// Under reports whether dn is the ancestor itself or descends from it.
func Under(dn, ancestor string) bool {
	return Equal(dn, ancestor) || IsChildOf(dn, ancestor)
}
