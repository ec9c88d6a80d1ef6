// Package download implements the final stage of the pipeline: stream
// a winning cover, resolve its actual format and dimensions, and save
// it to the output path in the right container format and size.
package download

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"net/http"
	"os"

	"golang.org/x/image/draw"

	"covergrab/internal/cover"
)

// Result describes what was actually written to disk.
type Result struct {
	// Path is the final output path. It may differ from the path
	// originally requested if only the extension needed to change
	// (step 6 of the algorithm).
	Path string
	// Format is the container format the bytes on disk were saved in.
	Format cover.Format
}

// Download streams c to outputPath, resizing/transcoding as needed so
// the result fits within a target x target bounding box (with
// tolerancePct slack) in the requested output format, unless
// preserveFormat asks to keep the cover's native format instead of
// the one implied by outputPath's extension.
func Download(ctx context.Context, c cover.Cover, outputPath string, target, tolerancePct int, preserveFormat bool) (*Result, error) {
	data, err := streamToMemory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("download: streaming %s: %w", c.URL, err)
	}

	format := c.Format
	if !format.IsKnown() {
		if sniffed, ok := sniffFormat(data); ok {
			format = cover.Known(sniffed)
		}
	}

	size := c.Size
	if !size.IsKnown() {
		if dims, ok := decodeDimensions(data); ok {
			size = cover.Known(dims)
		}
	}

	outputFormat, warnedDefault := formatFromExtension(outputPath)
	if warnedDefault {
		log.Printf("download: %s has no recognized image extension; defaulting to JPEG", outputPath)
	}

	needFormatChange := format.Value() != outputFormat && !preserveFormat
	needResize := size.IsKnown() && maxDim(size.Value()) > target+target*tolerancePct/100

	finalPath := outputPath
	finalFormat := outputFormat

	if preserveFormat && format.Value() != outputFormat && !needResize {
		finalPath = replaceExt(outputPath, format.Value().Ext())
		finalFormat = format.Value()
		needFormatChange = false
	}

	var out []byte
	if needFormatChange || needResize {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("download: decoding image: %w", err)
		}
		if needResize {
			img = resizeToBoundingBox(img, target)
		}
		out, err = encode(img, finalFormat)
		if err != nil {
			return nil, fmt.Errorf("download: encoding %v: %w", finalFormat, err)
		}
	} else {
		out = data
	}

	if err := os.WriteFile(finalPath, out, 0o644); err != nil {
		return nil, fmt.Errorf("download: writing %s: %w", finalPath, err)
	}

	if finalFormat == cover.Png {
		if err := optimizePNG(finalPath); err != nil {
			log.Printf("download: PNG optimization of %s failed (keeping unoptimized): %v", finalPath, err)
		}
	}

	return &Result{Path: finalPath, Format: finalFormat}, nil
}

func streamToMemory(ctx context.Context, c cover.Cover) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.SourceHTTP.DownloadCover(ctx, c.URL, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sniffFormat(data []byte) (cover.Format, bool) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return cover.Jpeg, true
	case "image/png":
		return cover.Png, true
	default:
		return 0, false
	}
}

func decodeDimensions(data []byte) (cover.SizePx, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return cover.SizePx{}, false
	}
	return cover.SizePx{Width: cfg.Width, Height: cfg.Height}, true
}

func formatFromExtension(path string) (format cover.Format, usedDefault bool) {
	switch ext := extLower(path); ext {
	case ".png":
		return cover.Png, false
	case ".jpg", ".jpeg":
		return cover.Jpeg, false
	default:
		return cover.Jpeg, true
	}
}

func extLower(path string) string {
	i := len(path) - 1
	for ; i >= 0 && path[i] != '.' && path[i] != '/'; i-- {
	}
	if i < 0 || path[i] != '.' {
		return ""
	}
	ext := path[i:]
	out := make([]byte, len(ext))
	for j, b := range []byte(ext) {
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[j] = b
	}
	return string(out)
}

func replaceExt(path, newExt string) string {
	i := len(path) - 1
	for ; i >= 0 && path[i] != '.' && path[i] != '/'; i-- {
	}
	if i < 0 || path[i] != '.' {
		return path + newExt
	}
	return path[:i] + newExt
}

func maxDim(s cover.SizePx) int {
	if s.Width > s.Height {
		return s.Width
	}
	return s.Height
}

// resizeToBoundingBox scales img down (or up) so it fits within a
// target x target box using a Lanczos3 kernel, preserving aspect
// ratio.
func resizeToBoundingBox(img image.Image, target int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	scale := float64(target) / float64(w)
	if hScale := float64(target) / float64(h); hScale < scale {
		scale = hScale
	}
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	lanczos3.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encode(img image.Image, format cover.Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case cover.Png:
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
