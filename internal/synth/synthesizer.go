// Package synth renders one background image per creative concept.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/imageutil"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
)

const DefaultSize = 1080

type ImageProvider interface {
	Synthesize(ctx context.Context, prompt string, reference *models.ImageInput) ([]byte, error)
}

type Request struct {
	Concept            models.CreativeConcept
	BrandName          string
	ProductDescription string
	Style              models.StyleDirective
	ProductImage       *models.ImageInput
}

// Result always carries a usable square PNG in Image. Err records why the
// placeholder was used.
type Result struct {
	Image       []byte
	Latency     time.Duration
	Placeholder bool
	RateLimited bool
	Err         error
}

type Synthesizer struct {
	provider ImageProvider
	size     int
	log      *logger.Logger
}

func New(provider ImageProvider, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Synthesizer{provider: provider, size: DefaultSize, log: log.With("service", "synth")}
}

func (s *Synthesizer) Size() int {
	return s.size
}

// Render calls the provider once. Any failure yields the placeholder,
// including a panic inside the provider.
func (s *Synthesizer) Render(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = s.fallback(req, start, fmt.Errorf("%w: image provider panicked: %v", apperr.ErrProviderFailure, r))
		}
	}()

	raw, err := s.provider.Synthesize(ctx, BuildPrompt(req), req.ProductImage)
	if err == nil {
		var out []byte
		out, err = s.normalize(raw)
		if err == nil {
			return Result{Image: out, Latency: time.Since(start)}
		}
	}
	return s.fallback(req, start, err)
}

func (s *Synthesizer) fallback(req Request, start time.Time, err error) Result {
	rateLimited := apperr.IsRateLimited(err)
	s.log.Warn("image synthesis failed, using placeholder",
		"concept", req.Concept.Index,
		"rate_limited", rateLimited,
		"error", err,
	)
	return Result{
		Image:       Placeholder(s.size),
		Latency:     time.Since(start),
		Placeholder: true,
		RateLimited: rateLimited,
		Err:         err,
	}
}

// Skipped is the result for a concept that was never sent to the provider.
func (s *Synthesizer) Skipped(reason error) Result {
	return Result{
		Image:       Placeholder(s.size),
		Placeholder: true,
		RateLimited: apperr.IsRateLimited(reason),
		Err:         reason,
	}
}

func (s *Synthesizer) normalize(raw []byte) ([]byte, error) {
	img, _, err := imageutil.Decode(raw)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("provider returned an empty image")
	}
	return imageutil.EncodePNG(imageutil.CoverSquare(img, s.size))
}

func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Create a professional square advertising photograph.\n\n")
	fmt.Fprintf(&sb, "SCENE: %s\n\n", strings.TrimSpace(req.Concept.VisualPrompt))
	if req.BrandName != "" {
		fmt.Fprintf(&sb, "BRAND: %s\n", req.BrandName)
	}
	fmt.Fprintf(&sb, "PRODUCT: %s\n", strings.TrimSpace(req.ProductDescription))
	if d := strings.TrimSpace(req.Style.Directive); d != "" {
		fmt.Fprintf(&sb, "STYLE: %s\n", d)
	}
	if req.ProductImage != nil {
		sb.WriteString("\nThe attached image is the real product. Feature it faithfully: keep its shape, colors, label and packaging exactly as shown.\n")
	}
	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- Photorealistic, high-end commercial quality\n")
	sb.WriteString("- 1:1 composition with generous calm space for a headline\n")
	sb.WriteString("- No text, letters, logos or watermarks anywhere in the image\n")
	return sb.String()
}
