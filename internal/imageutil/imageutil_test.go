package imageutil_test

import (
	"image"
	"image/color"
	"testing"

	"adangle-backend/internal/imageutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCoverSquare(t *testing.T) {
	out := imageutil.CoverSquare(solid(300, 200, color.RGBA{10, 20, 30, 255}), 64)

	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	c := out.RGBAAt(32, 32)
	assert.InDelta(t, 10, int(c.R), 1)
	assert.InDelta(t, 20, int(c.G), 1)
	assert.InDelta(t, 30, int(c.B), 1)
}

func TestFitWithin(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 150, 75), imageutil.FitWithin(solid(400, 200, color.White), 150).Bounds())
	assert.Equal(t, image.Rect(0, 0, 50, 150), imageutil.FitWithin(solid(100, 300, color.White), 150).Bounds())
	assert.Equal(t, image.Rect(0, 0, 40, 30), imageutil.FitWithin(solid(40, 30, color.White), 150).Bounds())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := imageutil.EncodePNG(solid(8, 8, color.Black))
	require.NoError(t, err)
	assert.Equal(t, "image/png", imageutil.ContentType(data))

	img, format, err := imageutil.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, _, err = imageutil.Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestMeanLuminance(t *testing.T) {
	img := solid(10, 10, color.RGBA{30, 60, 90, 255})

	assert.InDelta(t, 60.0, imageutil.MeanLuminance(img, img.Bounds()), 0.001)
}
