// Package phash implements a block-mean perceptual hash used to tell
// whether two downloaded cover images are the same picture at
// different resolutions or compression levels.
package phash

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
)

// gridSize is the number of blocks per side the image is reduced to
// before hashing; gridSize*gridSize must be <= 64 to fit in a uint64.
const gridSize = 8

// Hash is a 64-bit perceptual fingerprint: bit i is set if block i's
// mean luminance is at or above the overall mean.
type Hash uint64

// SimilarityThreshold bounds the Hamming distance for similarity: two
// hashes whose distance is strictly below it are considered the same
// image.
const SimilarityThreshold = 2

// FromImageBuffer decodes buf as an image and computes its hash.
func FromImageBuffer(buf []byte) (Hash, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	return FromImage(img), nil
}

// FromImage computes the hash of an already-decoded image.
func FromImage(img image.Image) Hash {
	small := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	var values [gridSize * gridSize]uint8
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			v := small.GrayAt(x, y).Y
			values[y*gridSize+x] = v
			sum += int(v)
		}
	}
	mean := sum / (gridSize * gridSize)

	var h Hash
	for i, v := range values {
		if int(v) >= mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// IsSimilar reports whether a and b are close enough to be considered
// the same underlying image.
func IsSimilar(a, b Hash) bool {
	return Distance(a, b) < SimilarityThreshold
}
