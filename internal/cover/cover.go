// Package cover defines the data model shared by every cover source,
// the ranking comparator, and the orchestrator: a single candidate
// image record plus the metadata-certainty and relevance types that
// describe how much a source can be trusted about it.
package cover

import (
	"context"
	"fmt"
	"io"
)

// Metadata is a value paired with a certainty flag: Known means the
// source asserts the value is authoritative, Uncertain means it's a
// best guess that should be replaced once the real value is known
// (e.g. by decoding the image).
type Metadata[T any] struct {
	known bool
	value T
}

// Known returns metadata asserting that v is authoritative.
func Known[T any](v T) Metadata[T] { return Metadata[T]{known: true, value: v} }

// Uncertain returns metadata carrying a best-guess value for v.
func Uncertain[T any](v T) Metadata[T] { return Metadata[T]{known: false, value: v} }

// IsKnown reports whether the value is authoritative.
func (m Metadata[T]) IsKnown() bool { return m.known }

// Value returns the carried value regardless of certainty.
func (m Metadata[T]) Value() T { return m.value }

// WithValue returns a copy of m with its value replaced, preserving
// its certainty flag.
func (m Metadata[T]) WithValue(v T) Metadata[T] { return Metadata[T]{known: m.known, value: v} }

// Format is an image container format.
type Format int

const (
	Jpeg Format = iota
	Png
)

func (f Format) String() string {
	switch f {
	case Jpeg:
		return "jpeg"
	case Png:
		return "png"
	default:
		return "unknown"
	}
}

// Ext returns the canonical file extension for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case Png:
		return ".png"
	default:
		return ".jpg"
	}
}

// SizePx is a width/height pair in pixels.
type SizePx struct {
	Width, Height int
}

// Valid reports whether both dimensions are positive, per the Cover
// invariant that size_px.value_hint() has both dimensions > 0.
func (s SizePx) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Avg returns (w+h)/2, used by the comparator to judge closeness to a
// target size.
func (s SizePx) Avg() float64 { return float64(s.Width+s.Height) / 2 }

// Ratio returns |w/h - 1|, the comparator's aspect-ratio metric.
func (s SizePx) Ratio() float64 {
	if s.Height == 0 {
		return 0
	}
	r := float64(s.Width)/float64(s.Height) - 1
	if r < 0 {
		return -r
	}
	return r
}

// Relevance summarizes the guarantees a source makes about a result:
// whether the match might be fuzzy (approximate text match), whether
// the source only returns front covers, and whether the source carries
// a risk of returning a completely unrelated image. It is totally
// ordered: less unrelated_risk first, then more only_front_covers,
// then less fuzzy.
type Relevance struct {
	Fuzzy           bool
	OnlyFrontCovers bool
	UnrelatedRisk   bool
}

// IsReference reports whether a cover with this relevance is trustworthy
// enough to serve as the perceptual-hash reference image.
func (r Relevance) IsReference() bool {
	return !r.Fuzzy && r.OnlyFrontCovers && !r.UnrelatedRisk
}

// Compare returns a negative number if r is worse than o, zero if
// equal, and positive if r is better, per the Relevance total order.
func (r Relevance) Compare(o Relevance) int {
	if r.UnrelatedRisk != o.UnrelatedRisk {
		if r.UnrelatedRisk {
			return -1 // less unrelated_risk is preferred
		}
		return 1
	}
	if r.OnlyFrontCovers != o.OnlyFrontCovers {
		if r.OnlyFrontCovers {
			return 1 // more only_front_covers is preferred
		}
		return -1
	}
	if r.Fuzzy != o.Fuzzy {
		if r.Fuzzy {
			return -1 // less fuzzy is preferred
		}
		return 1
	}
	return 0
}

// SourceName identifies which cover source produced a Cover.
type SourceName string

const (
	CoverArtArchive SourceName = "coverartarchive"
	Deezer          SourceName = "deezer"
	Discogs         SourceName = "discogs"
	Itunes          SourceName = "itunes"
	LastFm          SourceName = "lastfm"
)

// AllSourceNames lists every recognized source, in the order used when
// no -s flag restricts the set.
var AllSourceNames = []SourceName{CoverArtArchive, Deezer, Discogs, Itunes, LastFm}

// ParseSourceName validates a lowercase source name from the CLI.
func ParseSourceName(s string) (SourceName, error) {
	for _, n := range AllSourceNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown cover source %q", s)
}

// Key identifies a Cover in hash tables: the CoverKey of the spec,
// (url, source_name).
type Key struct {
	URL    string
	Source SourceName
}

// SourceHTTP is the minimal capability a Cover needs from the client
// that produced it in order to be downloaded later: Cover records
// outlive their adapter, so they carry a reference to this interface
// rather than to the concrete client.
type SourceHTTP interface {
	DownloadCover(ctx context.Context, url string, w io.Writer) error
}

// Cover is one candidate image returned by a source.
type Cover struct {
	// URL is the absolute URL of the full image.
	URL string
	// ThumbnailURL is the absolute URL of a small representative
	// image; may equal URL.
	ThumbnailURL string
	// Size is the image's pixel dimensions, possibly only a guess.
	Size Metadata[SizePx]
	// Format is the image's container format, possibly only a guess.
	Format Metadata[Format]
	// Source is the source that produced this cover.
	Source SourceName
	// SourceHTTP is a shared reference to the client that produced
	// this cover, used later to download the winning image.
	SourceHTTP SourceHTTP
	// Relevance describes the source's guarantees for this result.
	Relevance Relevance
	// Rank is this cover's zero-based position within its source's own
	// result list; lower is better.
	Rank int
}

// Key returns the Cover's identity in hash tables.
func (c Cover) Key() Key { return Key{URL: c.URL, Source: c.Source} }
