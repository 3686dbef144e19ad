// Package concepts asks the text model for a batch of ad concepts and
// validates the reply.
package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
)

type TextCompleter interface {
	Complete(ctx context.Context, prompt string, images []models.ImageInput) (string, error)
}

type Brief struct {
	BrandName           string
	ProductDescription  string
	CustomerDescription string
	Style               models.StyleDirective
	Count               int
}

type Generator struct {
	llm TextCompleter
	log *logger.Logger
}

func NewGenerator(llm TextCompleter, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{llm: llm, log: log.With("service", "concepts")}
}

// Generate returns between 1 and brief.Count concepts numbered from 1. Any
// unusable reply fails the whole batch with ErrConceptGenerationFailed.
func (g *Generator) Generate(ctx context.Context, brief Brief) ([]models.CreativeConcept, error) {
	count := brief.Count
	if count <= 0 || count > models.MaxConcepts {
		count = models.MaxConcepts
	}

	raw, err := g.llm.Complete(ctx, prompt(brief, count), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrConceptGenerationFailed, err)
	}

	concepts, err := Parse(raw, count)
	if err != nil {
		g.log.Warn("unusable concept batch", "error", err, "reply_bytes", len(raw))
		return nil, err
	}
	if len(concepts) < count {
		g.log.Info("short concept batch", "requested", count, "received", len(concepts))
	}
	return concepts, nil
}

// concept_number is ignored; concepts are renumbered in reply order.
type rawConcept struct {
	VisualPrompt string `json:"visual_prompt"`
	Hook         string `json:"hook"`
}

// Parse reads a JSON array of concepts, optionally wrapped in a code fence or
// an object with a "concepts" key, and keeps at most limit entries.
func Parse(raw string, limit int) ([]models.CreativeConcept, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", apperr.ErrConceptGenerationFailed)
	}

	var items []rawConcept
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Concepts []rawConcept `json:"concepts"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: decode: %v", apperr.ErrConceptGenerationFailed, err)
		}
		items = wrapped.Concepts
	} else if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrConceptGenerationFailed, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no concepts in reply", apperr.ErrConceptGenerationFailed)
	}
	if len(items) > limit {
		items = items[:limit]
	}

	out := make([]models.CreativeConcept, 0, len(items))
	for i, item := range items {
		hook := strings.TrimSpace(item.Hook)
		visual := strings.TrimSpace(item.VisualPrompt)
		if hook == "" {
			return nil, fmt.Errorf("%w: concept %d has no hook", apperr.ErrConceptGenerationFailed, i+1)
		}
		if visual == "" {
			return nil, fmt.Errorf("%w: concept %d has no visual prompt", apperr.ErrConceptGenerationFailed, i+1)
		}
		out = append(out, models.CreativeConcept{Index: i + 1, VisualPrompt: visual, Hook: hook})
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func prompt(b Brief, count int) string {
	customer := strings.TrimSpace(b.CustomerDescription)
	if customer == "" {
		customer = "People who would buy this product"
	}
	return fmt.Sprintf(`You are a world-class creative director for performance marketing. Your ads stop the scroll and feel emotionally true.

Create %[1]d DIVERSE ad concepts for %[2]s.

BRAND CONTEXT:
- Brand: %[2]s
- Product: %[3]s
- Target customer: %[4]s

VISUAL STYLE GUIDE (keep this aesthetic):
%[5]s

For each concept write:

1. visual_prompt: art direction for an image model, structured as
   SCENE: the human moment or story
   COMPOSITION: camera angle, framing, focus, where calm negative space sits for a headline
   LIGHTING: direction, quality and mood
   EMOTION: the feeling the image should carry
   PRODUCT INTEGRATION: how the product fits naturally into the moment
   STYLE: color palette, texture and cinematic references

2. hook: the only text on the ad, 3-8 words, in raw customer language. Specific numbers, times and frustrations beat generic slogans.

Every concept must differ in emotional tone, time of day, composition and the customer pain point it speaks to.

Return ONLY a JSON array with exactly %[1]d objects of the form
{"concept_number": <1-%[1]d>, "visual_prompt": "...", "hook": "..."}
and no other text.`, count, b.BrandName, b.ProductDescription, customer, b.Style.Directive)
}
