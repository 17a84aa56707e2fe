package product

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// IdentifierDigits is the number of digits in a compact product identifier.
const IdentifierDigits = 8

// Separator is the delimiter used by Format between digit groups.
const Separator = "."

// ErrFormat signals that a string cannot be formatted as an identifier.
var ErrFormat = errors.New("identifier must contain exactly 8 digits")

// compact: 8 digits; formatted: 3-3-2 groups split by '.', '-' or a space.
var identifierRegex = regexp.MustCompile(`^(?:[0-9]{8}|[0-9]{3}[.\- ][0-9]{3}[.\- ][0-9]{2})$`)

// IsValid reports whether text is a compact or formatted product identifier.
func IsValid(text string) bool {
	return identifierRegex.MatchString(text)
}

// Compact strips every non-digit character from text.
// The result is not length-checked.
func Compact(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if c := text[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Format renders text as "ddd.ddd.dd".
// When the compact form does not have exactly 8 digits it returns text
// unchanged together with ErrFormat, so callers can still display something.
func Format(text string) (string, error) {
	digits := Compact(text)
	if len(digits) != IdentifierDigits {
		return text, fmt.Errorf("format %q: %w", text, ErrFormat)
	}
	return digits[0:3] + Separator + digits[3:6] + Separator + digits[6:8], nil
}

// Identifier is a validated product identifier in compact form.
type Identifier string

// Parse validates text and returns its compact identifier.
func Parse(text string) (Identifier, error) {
	if !IsValid(text) {
		return "", fmt.Errorf("invalid identifier %q", text)
	}
	return Identifier(Compact(text)), nil
}

// String returns the compact form.
func (id Identifier) String() string { return string(id) }

// Formatted returns the 3-3-2 grouped form.
func (id Identifier) Formatted() string {
	s := string(id)
	return s[0:3] + Separator + s[3:6] + Separator + s[6:8]
}

// Partition returns the last three digits, used by the catalog service to shard
// metadata documents.
func (id Identifier) Partition() string {
	s := string(id)
	return s[len(s)-3:]
}
