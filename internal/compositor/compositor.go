// Package compositor flattens the hook text and brand logo onto a rendered
// background. Output depends only on its inputs.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"adangle-backend/internal/imageutil"
	"adangle-backend/internal/logger"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

type Options struct {
	Size         int
	FontSize     float64
	Padding      int
	WrapWidth    int
	LineStep     int
	ShadowOffset int
	LogoBox      int
}

func DefaultOptions() Options {
	return Options{
		Size:         1080,
		FontSize:     72,
		Padding:      60,
		WrapWidth:    25,
		LineStep:     80,
		ShadowOffset: 3,
		LogoBox:      150,
	}
}

var (
	lightPlate = color.NRGBA{R: 255, G: 255, B: 255, A: 200}
	darkPlate  = color.NRGBA{R: 0, G: 0, B: 0, A: 150}
)

type Compositor struct {
	opts Options
	font *truetype.Font
	log  *logger.Logger
}

func New(opts Options, log *logger.Logger) (*Compositor, error) {
	if opts.Size <= 0 {
		opts = DefaultOptions()
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Compositor{opts: opts, font: f, log: log.With("service", "compositor")}, nil
}

// Compose returns a PNG of background with hook drawn in the calmest band and
// logo in the top-right corner. A logo that cannot be used is skipped.
func (c *Compositor) Compose(background []byte, hook string, logo []byte) ([]byte, error) {
	src, _, err := imageutil.Decode(background)
	if err != nil {
		return nil, fmt.Errorf("failed to read background: %w", err)
	}
	canvas := c.normalize(src)

	band := SelectBand(ScoreBands(canvas, c.opts.Padding))

	dc := gg.NewContextForRGBA(canvas)
	// A face caches glyphs and is not safe to share between goroutines.
	face := truetype.NewFace(c.font, &truetype.Options{
		Size:    c.opts.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	defer face.Close()
	dc.SetFontFace(face)

	x := float64(c.opts.Padding)
	y := float64(band.TextY)
	shadow := float64(c.opts.ShadowOffset)
	for _, line := range WrapText(hook, c.opts.WrapWidth) {
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(line, x+shadow, y+shadow, 0, 1)
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(line, x, y, 0, 1)
		y += float64(c.opts.LineStep)
	}

	if len(logo) > 0 {
		if err := c.drawLogo(canvas, logo); err != nil {
			c.log.Warn("skipping logo", "error", err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compositor) normalize(src image.Image) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == c.opts.Size && b.Dy() == c.opts.Size {
		dst := image.NewRGBA(image.Rect(0, 0, c.opts.Size, c.opts.Size))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	return imageutil.CoverSquare(src, c.opts.Size)
}

func (c *Compositor) drawLogo(canvas *image.RGBA, data []byte) error {
	src, _, err := imageutil.Decode(data)
	if err != nil {
		return err
	}
	if src.Bounds().Empty() {
		return fmt.Errorf("logo has no pixels")
	}
	logo := imageutil.FitWithin(src, c.opts.LogoBox)
	lb := logo.Bounds()

	at := image.Pt(canvas.Bounds().Dx()-lb.Dx()-c.opts.Padding, c.opts.Padding)
	dest := image.Rectangle{Min: at, Max: at.Add(lb.Size())}

	plateColor := darkPlate
	if imageutil.MeanLuminance(canvas, dest) < 128 {
		plateColor = lightPlate
	}

	plate := image.NewRGBA(lb)
	draw.Draw(plate, lb, &image.Uniform{C: plateColor}, image.Point{}, draw.Src)
	draw.Draw(plate, lb, logo, lb.Min, draw.Over)
	draw.Draw(canvas, dest, plate, lb.Min, draw.Over)
	return nil
}

// WrapText breaks text on spaces so each line holds at most width characters,
// except for single words longer than width.
func WrapText(text string, width int) []string {
	var (
		lines   []string
		current []string
		length  int
	)
	for _, word := range strings.Fields(text) {
		n := len([]rune(word))
		if length+n+len(current) <= width {
			current = append(current, word)
			length += n
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{word}
		length = n
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}
