// Package sanitize turns untrusted catalog titles into safe single path segments.
package sanitize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the fallback label for names and years that cannot be derived.
const Unknown = "Unknown"

// Options selects the allow-list variant.
type Options struct {
	Parens        bool // also keep ( and )
	Transliterate bool // fold accents to ASCII first (Episódio -> Episodio)
}

// Name keeps ASCII letters, digits, underscore, hyphen and whitespace, then trims.
// The result never contains a path separator or a reserved character; it may be empty.
func Name(raw string) string {
	return NameWith(raw, Options{})
}

// NameWith is Name with the given options.
func NameWith(raw string, opts Options) string {
	if opts.Transliterate {
		raw = Fold(raw)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == ' ':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			// tabs, newlines and other spaces become a plain space
			b.WriteByte(' ')
		case opts.Parens && (r == '(' || r == ')'):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Fold strips combining marks after canonical decomposition. Characters without an ASCII
// base (CJK, emoji) pass through unchanged and are dropped later by the allow-list.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// OrFallback returns name, or fallback when name is empty.
func OrFallback(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// LanguageTag applies the catalog's subtitle convention: names carrying " L" (exact,
// case-sensitive) are subtitled, everything else is dubbed. Only the first " L" is removed.
func LanguageTag(name string) string {
	if strings.Contains(name, " L") {
		return strings.Replace(name, " L", "", 1) + " - Legendado"
	}
	return name + " - Dublado"
}

// SplitTitleYear splits a trailing "(YYYY)" with 1900 <= YYYY <= 2100 off s.
// year is 0 when there is none.
func SplitTitleYear(s string) (title string, year int) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || s[len(s)-1] != ')' {
		return s, 0
	}
	i := strings.LastIndex(s, "(")
	if i < 0 {
		return s, 0
	}
	y := strings.TrimSpace(s[i+1 : len(s)-1])
	if len(y) != 4 {
		return s, 0
	}
	n, err := strconv.Atoi(y)
	if err != nil || n < 1900 || n > 2100 {
		return s, 0
	}
	return strings.TrimSpace(s[:i]), n
}

// IsPlaceholderYear reports whether a catalog year field carries no real year.
func IsPlaceholderYear(y string) bool {
	switch strings.ToLower(strings.TrimSpace(y)) {
	case "", "0", "0000", "n/a", "na", "null", "none", "-":
		return true
	}
	return false
}

// YearFrom extracts a usable four-digit year from a year field or a date such as 2019-05-01.
// It returns "" for placeholders and anything outside 1900..2100.
func YearFrom(v string) string {
	v = strings.TrimSpace(v)
	if IsPlaceholderYear(v) || len(v) < 4 {
		return ""
	}
	n, err := strconv.Atoi(v[:4])
	if err != nil || n < 1900 || n > 2100 {
		return ""
	}
	return v[:4]
}
