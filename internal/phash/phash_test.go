package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func checkerboard(size, blockSize int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if ((x/blockSize)+(y/blockSize))%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 20})
			} else {
				img.SetGray(x, y, color.Gray{Y: 235})
			}
		}
	}
	return img
}

func gradient(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (2 * size))})
		}
	}
	return img
}

func solid(size int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSameImageDifferentResolutionsAreSimilar(t *testing.T) {
	big := checkerboard(512, 64)
	small := checkerboard(128, 16)

	h1 := FromImage(big)
	h2 := FromImage(small)
	if !IsSimilar(h1, h2) {
		t.Errorf("same checkerboard at different resolutions: distance=%d, not similar", Distance(h1, h2))
	}
}

func TestSameImageDifferentCompressionAreSimilar(t *testing.T) {
	img := gradient(256)
	h1, err := FromImageBuffer(encodeJPEG(t, img, 95))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := FromImageBuffer(encodeJPEG(t, img, 40))
	if err != nil {
		t.Fatal(err)
	}
	if !IsSimilar(h1, h2) {
		t.Errorf("same gradient at different JPEG quality: distance=%d, not similar", Distance(h1, h2))
	}
}

func TestSameImageAcrossFormatsAreSimilar(t *testing.T) {
	img := gradient(256)
	h1, err := FromImageBuffer(encodePNG(t, img))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := FromImageBuffer(encodeJPEG(t, img, 90))
	if err != nil {
		t.Fatal(err)
	}
	if !IsSimilar(h1, h2) {
		t.Errorf("same image PNG vs JPEG: distance=%d, not similar", Distance(h1, h2))
	}
}

func TestDifferentImagesAreNotSimilar(t *testing.T) {
	a := solid(256, 10)
	b := checkerboard(256, 32)
	h1, h2 := FromImage(a), FromImage(b)
	if IsSimilar(h1, h2) {
		t.Errorf("solid black vs checkerboard should not be similar, distance=%d", Distance(h1, h2))
	}
}

func TestDistanceIsSymmetricAndZeroForIdentical(t *testing.T) {
	img := gradient(64)
	h := FromImage(img)
	if Distance(h, h) != 0 {
		t.Errorf("Distance(h, h) = %d; want 0", Distance(h, h))
	}
	h2 := FromImage(checkerboard(64, 8))
	if Distance(h, h2) != Distance(h2, h) {
		t.Error("Distance should be symmetric")
	}
}
