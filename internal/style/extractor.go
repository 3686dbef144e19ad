// Package style turns brand reference images into a reusable style directive.
package style

import (
	"context"
	"fmt"
	"strings"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
)

const (
	MaxReferenceImages = 5
	maxSentences       = 3
)

type TextCompleter interface {
	Complete(ctx context.Context, prompt string, images []models.ImageInput) (string, error)
}

type Extractor struct {
	llm TextCompleter
	log *logger.Logger
}

func NewExtractor(llm TextCompleter, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{llm: llm, log: log.With("service", "style")}
}

// Extract always returns a directive. When either model call fails the result
// is the minimal directive built from the brand and product text, marked Degraded.
func (e *Extractor) Extract(ctx context.Context, brandName, productDescription string, images []models.ImageInput) models.StyleDirective {
	if len(images) > MaxReferenceImages {
		images = images[:MaxReferenceImages]
	}

	directive, err := e.extract(ctx, brandName, productDescription, images)
	if err != nil {
		e.log.Warn("style extraction degraded",
			"brand", brandName,
			"images", len(images),
			"error", err,
		)
		return Fallback(brandName, productDescription, len(images))
	}
	return directive
}

func (e *Extractor) extract(ctx context.Context, brandName, productDescription string, images []models.ImageInput) (models.StyleDirective, error) {
	if len(images) == 0 {
		return models.StyleDirective{}, fmt.Errorf("%w: no reference images", apperr.ErrDegradedStyle)
	}

	analysis, err := e.llm.Complete(ctx, analysisPrompt(brandName, productDescription, len(images)), images)
	if err != nil {
		return models.StyleDirective{}, fmt.Errorf("%w: analysis: %v", apperr.ErrDegradedStyle, err)
	}
	analysis = strings.TrimSpace(analysis)
	if analysis == "" {
		return models.StyleDirective{}, fmt.Errorf("%w: empty analysis", apperr.ErrDegradedStyle)
	}

	compressed, err := e.llm.Complete(ctx, directivePrompt(analysis), nil)
	if err != nil {
		return models.StyleDirective{}, fmt.Errorf("%w: directive: %v", apperr.ErrDegradedStyle, err)
	}
	compressed = LimitSentences(cleanDirective(compressed), maxSentences)
	if compressed == "" {
		return models.StyleDirective{}, fmt.Errorf("%w: empty directive", apperr.ErrDegradedStyle)
	}

	return models.StyleDirective{
		BrandName:    brandName,
		FullAnalysis: analysis,
		Directive:    compressed,
		SourceImages: len(images),
	}, nil
}

func Fallback(brandName, productDescription string, sourceImages int) models.StyleDirective {
	return models.StyleDirective{
		BrandName:    brandName,
		FullAnalysis: fmt.Sprintf("Brand: %s. Product: %s. Professional photography style.", brandName, productDescription),
		Directive:    fmt.Sprintf("Professional, high-quality photography for %s showing %s", brandName, productDescription),
		SourceImages: sourceImages,
		Degraded:     true,
	}
}

func cleanDirective(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	for _, prefix := range []string{"Style Directive:", "Style directive:", "STYLE DIRECTIVE:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.Join(strings.Fields(s), " ")
}

// LimitSentences keeps the first n sentences of s.
func LimitSentences(s string, n int) string {
	s = strings.TrimSpace(s)
	count := 0
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		count++
		if count == n {
			return strings.TrimSpace(string(runes[:i+1]))
		}
	}
	return s
}

func analysisPrompt(brandName, productDescription string, numImages int) string {
	return fmt.Sprintf(`You have been given a brand's images. Create a visual guide that can be used to produce more visuals in the style of this brand.

Brand: %s
Product: %s
Number of reference images: %d

Analyze these images and write a detailed visual bible covering:

## Brand Mood
- Positioning, the overall vibe and the lifestyle or feeling the brand sells

## Color Palette
- Primary base colors, secondary and accent tones, environmental colors
- Use specific color names or hex codes

## Photography & Environment
- Setting, background and styling choices
- Lighting: source, quality, color temperature
- Composition: framing, camera angles, use of space
- Human element: how people are shown, positioned and dressed

## Product Styling
- Product positioning and state, highlighted features, props

## Do's and Don'ts
- Specific rules for keeping new images consistent with the brand

Be specific and actionable. The guide will be used to generate new images that look like they came from the same photoshoot.`, brandName, productDescription, numImages)
}

func directivePrompt(analysis string) string {
	return fmt.Sprintf(`Based on the visual bible below, write a CONCISE 2-3 sentence style directive that can be appended to image generation prompts to keep new images on brand.

Visual Bible:
%s

Be concise but specific about colors, lighting, mood and aesthetic. Reply with the directive only.

Style Directive:`, analysis)
}
