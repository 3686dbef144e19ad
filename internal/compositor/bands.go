package compositor

import (
	"image"

	"adangle-backend/internal/imageutil"
)

const (
	minBrightness     = 50
	maxBrightness     = 200
	brightnessPenalty = 50
	baseScore         = 1000
	// initialBest is the score a band has to beat when nothing is in range.
	initialBest = -1
)

type Band struct {
	Name     string
	Rect     image.Rectangle
	TextY    int
	Mean     float64
	Variance float64
	Score    float64
}

func (b Band) InRange() bool {
	return b.Mean >= minBrightness && b.Mean <= maxBrightness
}

// ScoreBands splits img into top, middle and bottom thirds and scores each.
// Bottom is always the last element.
func ScoreBands(img *image.RGBA, padding int) []Band {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	bands := []Band{
		{Name: "top", Rect: image.Rect(0, 0, w, h/3), TextY: padding},
		{Name: "middle", Rect: image.Rect(0, h/3, w, 2*h/3), TextY: h/2 - 100},
		{Name: "bottom", Rect: image.Rect(0, 2*h/3, w, h), TextY: h - 220},
	}
	for i := range bands {
		bands[i].Rect = bands[i].Rect.Add(r.Min)
		mean, variance := luminanceStats(img, bands[i].Rect)
		bands[i].Mean = mean
		bands[i].Variance = variance
		bands[i].Score = baseScore - variance
		if !bands[i].InRange() {
			bands[i].Score -= brightnessPenalty
		}
	}
	return bands
}

// SelectBand picks the best in-range band with a non-negative score. Failing
// that it takes the top scorer above initialBest, and finally the bottom band.
func SelectBand(bands []Band) Band {
	if len(bands) == 0 {
		return Band{Name: "bottom"}
	}
	best := -1
	for i, b := range bands {
		if !b.InRange() || b.Score < 0 {
			continue
		}
		if best < 0 || b.Score > bands[best].Score {
			best = i
		}
	}
	if best >= 0 {
		return bands[best]
	}

	bestScore := float64(initialBest)
	for i, b := range bands {
		if b.Score > bestScore {
			bestScore = b.Score
			best = i
		}
	}
	if best >= 0 {
		return bands[best]
	}
	return bands[len(bands)-1]
}

func luminanceStats(img *image.RGBA, rect image.Rectangle) (mean, variance float64) {
	rect = rect.Intersect(img.Bounds())
	n := rect.Dx() * rect.Dy()
	if n == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			l := imageutil.Luminance(img.RGBAAt(x, y))
			sum += l
			sumSq += l * l
		}
	}
	mean = sum / float64(n)
	variance = sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}
