package download

import (
	"math"

	"golang.org/x/image/draw"
)

// lanczos3Support is the kernel's support radius in source pixels, per
// the standard Lanczos windowed-sinc definition with a=3.
const lanczos3Support = 3.0

// lanczos3 is a Lanczos3 resampling kernel built on x/image/draw's
// generic Kernel type, which already does the convolution machinery;
// only the weighting function At is specific to Lanczos.
var lanczos3 = draw.Kernel{Support: lanczos3Support, At: lanczosAt}

func lanczosAt(x float64) float64 {
	if x == 0 {
		return 1
	}
	if x < -lanczos3Support || x > lanczos3Support {
		return 0
	}
	return sinc(x) * sinc(x/lanczos3Support)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
