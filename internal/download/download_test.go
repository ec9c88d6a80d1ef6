package download

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"covergrab/internal/cover"
)

type fakeSourceHTTP struct {
	data []byte
	err  error
}

func (f *fakeSourceHTTP) DownloadCover(ctx context.Context, url string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write(f.data)
	return err
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func encodeJPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodePNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func init() {
	setOxipngForTest(func(path string) error { return nil })
}

func TestDownloadByteCopyWhenNoChangeNeeded(t *testing.T) {
	data := encodeJPEGBytes(t, solidImage(100, 100))
	c := cover.Cover{
		URL:        "http://x/a.jpg",
		Size:       cover.Known(cover.SizePx{Width: 100, Height: 100}),
		Format:     cover.Known(cover.Jpeg),
		SourceHTTP: &fakeSourceHTTP{data: data},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	res, err := Download(context.Background(), c, out, 1000, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != out {
		t.Errorf("Path = %q; want %q", res.Path, out)
	}
	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, data) {
		t.Error("bytes were not copied verbatim when no transcode/resize was needed")
	}
}

func TestDownloadResizesWhenOversized(t *testing.T) {
	data := encodeJPEGBytes(t, solidImage(2000, 2000))
	c := cover.Cover{
		URL:        "http://x/a.jpg",
		Size:       cover.Known(cover.SizePx{Width: 2000, Height: 2000}),
		Format:     cover.Known(cover.Jpeg),
		SourceHTTP: &fakeSourceHTTP{data: data},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	res, err := Download(context.Background(), c, out, 500, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width > 500 || cfg.Height > 500 {
		t.Errorf("resized image is %dx%d; want within 500x500", cfg.Width, cfg.Height)
	}
}

func TestDownloadTranscodesToOutputFormat(t *testing.T) {
	data := encodePNGBytes(t, solidImage(50, 50))
	c := cover.Cover{
		URL:        "http://x/a.png",
		Size:       cover.Known(cover.SizePx{Width: 50, Height: 50}),
		Format:     cover.Known(cover.Png),
		SourceHTTP: &fakeSourceHTTP{data: data},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	res, err := Download(context.Background(), c, out, 1000, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != cover.Jpeg {
		t.Errorf("Format = %v; want Jpeg", res.Format)
	}
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := jpeg.Decode(f); err != nil {
		t.Errorf("output is not valid JPEG: %v", err)
	}
}

func TestDownloadPreserveFormatChangesExtension(t *testing.T) {
	data := encodePNGBytes(t, solidImage(50, 50))
	c := cover.Cover{
		URL:        "http://x/a.png",
		Size:       cover.Known(cover.SizePx{Width: 50, Height: 50}),
		Format:     cover.Known(cover.Png),
		SourceHTTP: &fakeSourceHTTP{data: data},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	res, err := Download(context.Background(), c, out, 1000, 10, true)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "out.png")
	if res.Path != want {
		t.Errorf("Path = %q; want %q", res.Path, want)
	}
	if res.Format != cover.Png {
		t.Errorf("Format = %v; want Png", res.Format)
	}
}

func TestSniffFormatFallsBackFromUncertain(t *testing.T) {
	data := encodeJPEGBytes(t, solidImage(50, 50))
	c := cover.Cover{
		URL:        "http://x/a",
		Size:       cover.Uncertain(cover.SizePx{Width: 900, Height: 900}),
		Format:     cover.Uncertain(cover.Png), // deliberately wrong guess
		SourceHTTP: &fakeSourceHTTP{data: data},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	res, err := Download(context.Background(), c, out, 1000, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := jpeg.Decode(f); err != nil {
		t.Errorf("sniffed format should have corrected the uncertain PNG guess: %v", err)
	}
}

func TestFormatFromExtensionDefaultsToJPEGWithWarning(t *testing.T) {
	format, usedDefault := formatFromExtension("/tmp/out.gif")
	if format != cover.Jpeg || !usedDefault {
		t.Errorf("formatFromExtension(.gif) = %v, %v; want Jpeg, true", format, usedDefault)
	}
	format, usedDefault = formatFromExtension("/tmp/out.png")
	if format != cover.Png || usedDefault {
		t.Errorf("formatFromExtension(.png) = %v, %v; want Png, false", format, usedDefault)
	}
}
