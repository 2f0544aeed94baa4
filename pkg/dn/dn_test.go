package dn

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		dn   string
		want []string
	}{
		{"simple", "uid=a,ou=b,dc=c", []string{"uid=a", "ou=b", "dc=c"}},
		{"spaces after commas", "uid=a, ou=b, dc=c", []string{"uid=a", "ou=b", "dc=c"}},
		{"escaped comma stays in component", `cn=Smith\, John,ou=people,dc=x`, []string{`cn=Smith\, John`, "ou=people", "dc=x"}},
		{"single component", "dc=c", []string{"dc=c"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.dn)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.dn, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Parse(%q)[%d] = %q, want %q", tt.dn, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParent(t *testing.T) {
	if got := Parent("uid=a,ou=b,dc=c"); got != "ou=b,dc=c" {
		t.Errorf("Parent() = %q, want %q", got, "ou=b,dc=c")
	}
	// A single-component DN is its own parent.
	if got := Parent("dc=c"); got != "dc=c" {
		t.Errorf("Parent(single) = %q, want %q", got, "dc=c")
	}
	if got := Parent(`cn=Smith\, John,ou=people,dc=x`); got != "ou=people,dc=x" {
		t.Errorf("Parent(escaped) = %q", got)
	}
}

func TestRDN(t *testing.T) {
	if got := RDN("uid=a,ou=b,dc=c"); got != "uid=a" {
		t.Errorf("RDN() = %q, want %q", got, "uid=a")
	}
	if got := RDN(""); got != "" {
		t.Errorf("RDN(empty) = %q, want empty", got)
	}
}

func TestIsChildOf(t *testing.T) {
	tests := []struct {
		dn, ancestor string
		want         bool
	}{
		{"uid=a,ou=b,dc=c", "ou=b,dc=c", true},
		{"ou=b,dc=c", "ou=b,dc=c", false}, // strict descent only
		{"uid=a,ou=sub,ou=b,dc=c", "ou=b,dc=c", true},
		{"uid=a,ou=bb,dc=c", "ou=b,dc=c", false}, // no substring matches
		{"uid=a,OU=B,DC=C", "ou=b,dc=c", true},   // case-insensitive
		{"ou=b,dc=c", "uid=a,ou=b,dc=c", false},
		{"", "ou=b,dc=c", false},
		{"uid=a,ou=b,dc=c", "", false},
	}

	for _, tt := range tests {
		if got := IsChildOf(tt.dn, tt.ancestor); got != tt.want {
			t.Errorf("IsChildOf(%q, %q) = %v, want %v", tt.dn, tt.ancestor, got, tt.want)
		}
	}
}

func TestUnder(t *testing.T) {
	if !Under("ou=b,dc=c", "ou=b,dc=c") {
		t.Error("Under should accept the anchor itself")
	}
	if !Under("uid=a,ou=b,dc=c", "ou=b,dc=c") {
		t.Error("Under should accept descendants")
	}
	if Under("ou=x,dc=c", "ou=b,dc=c") {
		t.Error("Under should reject siblings")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("UID=A, OU=B, DC=C", "uid=a,ou=b,dc=c") {
		t.Error("Equal should ignore case and separator whitespace")
	}
	if Equal("uid=a,dc=c", "uid=b,dc=c") {
		t.Error("Equal should reject distinct DNs")
	}
}

func TestEscapeValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Smith, John", `Smith\, John`},
		{`back\slash`, `back\5cslash`},
		{"a+b", `a\+b`},
		{`say "hi"`, `say \"hi\"`},
		{"<tag>", `\<tag\>`},
		{" leading", `\20leading`},
		{"trailing ", `trailing\20`},
		{"#hash", `\23hash`},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EscapeValue(tt.in); got != tt.want {
			t.Errorf("EscapeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeFilter(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"*", `\2a`},
		{"(uid=x)", `\28uid=x\29`},
		{`a\b`, `a\5cb`},
		{"admin", "admin"},
	}

	for _, tt := range tests {
		if got := EscapeFilter(tt.in); got != tt.want {
			t.Errorf("EscapeFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateValue(t *testing.T) {
	valid := []string{"alice", "ou=people", "Smith, John"}
	for _, v := range valid {
		if err := ValidateValue("cn", v); err != nil {
			t.Errorf("ValidateValue(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "   ", "a\x00b", "a\tb", "zero\u200bwidth", "bom\ufeff"}
	for _, v := range invalid {
		err := ValidateValue("cn", v)
		if err == nil {
			t.Errorf("ValidateValue(%q) expected error", v)
			continue
		}
		if !strings.HasPrefix(err.Error(), "cn:") {
			t.Errorf("ValidateValue(%q) error should name the field, got %v", v, err)
		}
	}
}
