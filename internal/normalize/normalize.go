// Package normalize canonicalizes artist/album strings so that source
// adapters can compare user queries against response fields regardless
// of case or accenting.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks left behind by NFD decomposition,
// keeping the base codepoint of each decomposed cluster.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// String lowercases s and strips accents via canonical decomposition,
// keeping the base codepoint of each decomposed cluster. It is
// idempotent: String(String(s)) == String(s).
func String(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// isKeepablePunctuation reports whether r should survive Strict's
// ASCII-punctuation/non-ASCII strip. Letters, digits, and whitespace
// always survive; everything else is dropped.
func isKeepablePunctuation(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)
}

// Strict applies String and additionally drops ASCII punctuation and
// any remaining non-ASCII codepoints, as used by the iTunes adapter's
// query construction.
func Strict(s string) string {
	s = String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > unicode.MaxASCII {
			continue
		}
		if !isKeepablePunctuation(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
