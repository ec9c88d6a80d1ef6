package orchestrator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"covergrab/internal/cover"
	"covergrab/internal/sourcehttp"
)

type fakeSourceHTTP struct {
	data []byte
}

func (f *fakeSourceHTTP) DownloadCover(ctx context.Context, url string, w io.Writer) error {
	_, err := w.Write(f.data)
	return err
}

func (f *fakeSourceHTTP) DownloadThumbnail(ctx context.Context, url string) ([]byte, error) {
	return f.data, nil
}

// checkerboardJPEG draws a high-contrast checkerboard so its
// perceptual hash is meaningfully different from an inverted one —
// unlike a solid color, whose hash collapses to the same bit pattern
// regardless of which color is used.
func checkerboardJPEG(t *testing.T, size, blockSize int, invert bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			on := ((x/blockSize)+(y/blockSize))%2 == 0
			if invert {
				on = !on
			}
			v := uint8(20)
			if on {
				v = 235
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// stubMerge overrides fanOutAndMergeFunc for the duration of a test so
// the pipeline stages downstream of search can be exercised without
// hitting real source APIs.
func stubMerge(t *testing.T, covers []cover.Cover) {
	t.Helper()
	orig := fanOutAndMergeFunc
	fanOutAndMergeFunc = func(ctx context.Context, q Query, opts Options, reg *sourcehttp.Registry) []cover.Cover {
		return covers
	}
	t.Cleanup(func() { fanOutAndMergeFunc = orig })
}

func TestSearchReturnsNotFoundWhenAllSourcesEmpty(t *testing.T) {
	stubMerge(t, nil)

	_, err := Search(context.Background(), Query{Artist: "a", Album: "b"}, Options{OutputPath: filepath.Join(t.TempDir(), "out.jpg")}, nil)
	if err != ErrNotFound {
		t.Errorf("Search() err = %v; want ErrNotFound", err)
	}
}

// TestSearchPrefersPerceptualMatchOverUnrelatedImage exercises the
// "reference match ranks above an unmatched same-size/format
// candidate" scenario: the cover-art-archive candidate both serves as
// the reference image and is itself a download candidate, the deezer
// candidate happens to be pixel-identical to it, and the itunes
// candidate is a visually unrelated image of identical size and
// format. The unrelated candidate must lose regardless of where it
// sorts relative to the other two.
func TestSearchPrefersPerceptualMatchOverUnrelatedImage(t *testing.T) {
	refData := checkerboardJPEG(t, 96, 12, false)
	matchData := checkerboardJPEG(t, 96, 12, false)
	unmatchedData := checkerboardJPEG(t, 96, 12, true)

	refSrc := &fakeSourceHTTP{data: refData}
	matchSrc := &fakeSourceHTTP{data: matchData}
	unmatchedSrc := &fakeSourceHTTP{data: unmatchedData}

	covers := []cover.Cover{
		{
			URL:    "http://x/ref.jpg",
			Source: cover.CoverArtArchive,
			Size:   cover.Known(cover.SizePx{Width: 100, Height: 100}),
			Format: cover.Known(cover.Jpeg),
			Relevance: cover.Relevance{
				Fuzzy: false, OnlyFrontCovers: true, UnrelatedRisk: false,
			},
			SourceHTTP: refSrc,
		},
		{
			URL:    "http://x/matched.jpg",
			Source: cover.Deezer,
			Size:   cover.Known(cover.SizePx{Width: 100, Height: 100}),
			Format: cover.Known(cover.Jpeg),
			Relevance: cover.Relevance{
				Fuzzy: true, OnlyFrontCovers: false, UnrelatedRisk: true,
			},
			SourceHTTP: matchSrc,
		},
		{
			URL:    "http://x/unmatched.jpg",
			Source: cover.Itunes,
			Size:   cover.Known(cover.SizePx{Width: 100, Height: 100}),
			Format: cover.Known(cover.Jpeg),
			Relevance: cover.Relevance{
				Fuzzy: true, OnlyFrontCovers: false, UnrelatedRisk: true,
			},
			SourceHTTP: unmatchedSrc,
		},
	}
	stubMerge(t, covers)

	out := filepath.Join(t.TempDir(), "out.jpg")
	res, err := Search(context.Background(), Query{Artist: "a", Album: "b"}, Options{
		TargetSizePx:     100,
		SizeTolerancePct: 10,
		OutputPath:       out,
	}, nil)
	if err != nil {
		t.Fatalf("Search() err = %v", err)
	}
	if res.Cover.URL == "http://x/unmatched.jpg" {
		t.Errorf("Search() picked the perceptually unrelated cover over matching ones")
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestFilterBySizeDropsUndersized(t *testing.T) {
	covers := []cover.Cover{
		{URL: "big", Size: cover.Known(cover.SizePx{Width: 1000, Height: 1000})},
		{URL: "small", Size: cover.Known(cover.SizePx{Width: 50, Height: 50})},
		{URL: "unknown", Size: cover.Uncertain(cover.SizePx{})},
	}
	filtered := filterBySize(covers, 500, 10)
	if len(filtered) != 2 {
		t.Fatalf("filterBySize() returned %d covers; want 2", len(filtered))
	}
	for _, c := range filtered {
		if c.URL == "small" {
			t.Errorf("undersized cover %q should have been dropped", c.URL)
		}
	}
}
