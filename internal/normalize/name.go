package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// Legal-entity suffixes are removed as plain substrings, in this order.
var legalSuffixes = []string{" sa", " srl", " s a", " s r l"}

// NormalizeName lowercases, strips accents and punctuation, collapses
// whitespace and drops legal-entity suffixes. "JUAN PÉREZ S.A." becomes
// "juan perez".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
	for _, suffix := range legalSuffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	return strings.TrimSpace(s)
}

// Tokens splits an already normalized name into its distinct words longer
// than two characters.
func Tokens(normalized string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if len(tok) > 2 {
			out[tok] = struct{}{}
		}
	}
	return out
}

// NameTokens normalizes name and returns its tokens.
func NameTokens(name string) map[string]struct{} {
	return Tokens(NormalizeName(name))
}

// SharedTokens counts tokens present in both sets.
func SharedTokens(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}
