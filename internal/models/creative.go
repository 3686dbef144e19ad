package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxConcepts  = 5
	HookMinWords = 3
	HookMaxWords = 8
)

type ImageInput struct {
	MIMEType string
	Data     []byte
}

type StyleDirective struct {
	BrandName    string `json:"brand_name"`
	FullAnalysis string `json:"full_analysis"`
	Directive    string `json:"style_directive"`
	SourceImages int    `json:"num_images_analyzed"`
	Degraded     bool   `json:"degraded"`
}

type CreativeConcept struct {
	Index        int    `json:"concept_number"`
	VisualPrompt string `json:"visual_prompt"`
	Hook         string `json:"hook"`
}

// HookWords counts whitespace separated words in the hook.
func (c CreativeConcept) HookWords() int {
	return len(strings.Fields(c.Hook))
}

func (c CreativeConcept) Validate() error {
	if strings.TrimSpace(c.VisualPrompt) == "" {
		return fmt.Errorf("concept %d has no visual prompt", c.Index)
	}
	if n := c.HookWords(); n < HookMinWords || n > HookMaxWords {
		return fmt.Errorf("concept %d hook has %d words, want %d to %d", c.Index, n, HookMinWords, HookMaxWords)
	}
	return nil
}

type RenderedAsset struct {
	ID           uuid.UUID       `json:"id"`
	RunID        uuid.UUID       `json:"run_id"`
	SessionID    uuid.UUID       `json:"session_id"`
	ConceptIndex int             `json:"concept_index"`
	Concept      CreativeConcept `json:"concept"`
	Background   []byte          `json:"-"`
	Composite    []byte          `json:"-"`
	Latency      time.Duration   `json:"latency"`
	Placeholder  bool            `json:"placeholder"`
	StoragePath  string          `json:"storage_path,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Output returns the composite when compositing succeeded, otherwise the background.
func (a RenderedAsset) Output() []byte {
	if len(a.Composite) > 0 {
		return a.Composite
	}
	return a.Background
}

type GenerationParams struct {
	BrandName           string `json:"brand_name"`
	ProductDescription  string `json:"product_description"`
	CustomerDescription string `json:"customer_description,omitempty"`
	NumConcepts         int    `json:"num_concepts"`
}

type GenerationRun struct {
	ID             uuid.UUID        `json:"id"`
	SessionID      uuid.UUID        `json:"session_id"`
	Params         GenerationParams `json:"params"`
	StyleDirective string           `json:"style_directive"`
	DegradedStyle  bool             `json:"degraded_style"`
	RateLimited    bool             `json:"rate_limited"`
	Assets         []RenderedAsset  `json:"assets"`
	TotalLatency   time.Duration    `json:"total_latency"`
	CreatedAt      time.Time        `json:"created_at"`
}
