package synth

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"adangle-backend/internal/imageutil"
)

var (
	gradientFrom = color.RGBA{R: 30, G: 30, B: 35, A: 255}
	gradientTo   = color.RGBA{R: 50, G: 50, B: 60, A: 255}

	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns the fixed diagonal gradient used when synthesis fails.
// Each call gets its own copy.
func Placeholder(size int) []byte {
	if size != DefaultSize {
		return renderGradient(size)
	}
	placeholderOnce.Do(func() {
		placeholderPNG = renderGradient(DefaultSize)
	})
	return bytes.Clone(placeholderPNG)
}

func renderGradient(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	span := float64(2 * (size - 1))
	if span <= 0 {
		span = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			t := float64(x+y) / span
			img.SetRGBA(x, y, color.RGBA{
				R: lerp(gradientFrom.R, gradientTo.R, t),
				G: lerp(gradientFrom.G, gradientTo.G, t),
				B: lerp(gradientFrom.B, gradientTo.B, t),
				A: 255,
			})
		}
	}
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		// Encoding an in-memory RGBA image cannot fail.
		panic(err)
	}
	return data
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
