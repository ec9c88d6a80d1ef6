// Package library implements the recursive CLI's two remaining
// collaborators: walking a music tree for per-directory batches of
// audio files, and turning an {artist}/{album} output pattern into a
// sanitized destination path.
package library

import "strings"

// allowedExtra is the set of ASCII punctuation kept as-is by Sanitize,
// beyond alphanumerics and space.
const allowedExtra = "-_.()!#$%&'@^{}~"

// Sanitize rewrites s so it's safe to use as a single path component:
// '/' and '\' become '-', '|' and '*' become 'x', every other
// character outside the allowed set is dropped, and the result is
// trimmed of leading/trailing spaces and dots.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('-')
		case r == '|' || r == '*':
			b.WriteByte('x')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case strings.ContainsRune(allowedExtra, r):
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), " .")
}

// Pattern expands an output_pattern_or_'+' value against a query.
// "+" means embed into the audio files directly rather than writing
// an image file, reported via Embed.
type Pattern struct {
	raw   string
	embed bool
}

// NewPattern parses the CLI's output-pattern argument.
func NewPattern(raw string) Pattern {
	return Pattern{raw: raw, embed: raw == "+"}
}

// Embed reports whether the pattern requests embedding into the audio
// files instead of writing a standalone image.
func (p Pattern) Embed() bool { return p.embed }

// Expand substitutes {artist} and {album} with their sanitized forms
// and returns the resulting path. It panics if called on an embedding
// pattern; callers must check Embed first.
func (p Pattern) Expand(artist, album string) string {
	if p.embed {
		panic("library: Expand called on an embedding pattern")
	}
	s := strings.ReplaceAll(p.raw, "{artist}", Sanitize(artist))
	s = strings.ReplaceAll(s, "{album}", Sanitize(album))
	return s
}
