package style_test

import (
	"context"
	"errors"
	"testing"

	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/style"
	"github.com/stretchr/testify/assert"
)

type scriptedLLM struct {
	replies []string
	errs    []error
	images  [][]models.ImageInput
}

func (s *scriptedLLM) Complete(_ context.Context, _ string, images []models.ImageInput) (string, error) {
	i := len(s.images)
	s.images = append(s.images, images)
	var reply string
	var err error
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return reply, err
}

func refs(n int) []models.ImageInput {
	out := make([]models.ImageInput, n)
	for i := range out {
		out[i] = models.ImageInput{MIMEType: "image/jpeg", Data: []byte{byte(i)}}
	}
	return out
}

func TestExtract_TwoCalls(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"## Palette\nWarm browns and cream.",
		"Style Directive: Warm window light. Earthy browns and cream. Calm morning mood. Shot on 50mm film.",
	}}
	e := style.NewExtractor(llm, logger.Nop())

	d := e.Extract(context.Background(), "Acme Coffee", "cold brew", refs(7))

	assert.False(t, d.Degraded)
	assert.Equal(t, "Warm window light. Earthy browns and cream. Calm morning mood.", d.Directive)
	assert.Contains(t, d.FullAnalysis, "Warm browns")
	assert.Equal(t, 5, d.SourceImages)
	assert.Len(t, llm.images, 2)
	assert.Len(t, llm.images[0], 5)
	assert.Empty(t, llm.images[1])
}

func TestExtract_AnalysisFailureFallsBack(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("upstream 500")}}
	e := style.NewExtractor(llm, logger.Nop())

	d := e.Extract(context.Background(), "Acme Coffee", "cold brew", refs(3))

	assert.True(t, d.Degraded)
	assert.Equal(t, "Professional, high-quality photography for Acme Coffee showing cold brew", d.Directive)
	assert.NotEmpty(t, d.FullAnalysis)
	assert.Equal(t, 3, d.SourceImages)
	assert.Len(t, llm.images, 1)
}

func TestExtract_CompressionFailureFallsBack(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"analysis", ""}, errs: []error{nil, errors.New("timeout")}}

	d := style.NewExtractor(llm, logger.Nop()).Extract(context.Background(), "Acme", "beans", refs(1))

	assert.True(t, d.Degraded)
	assert.NotEmpty(t, d.Directive)
}

func TestExtract_EmptyOutputFallsBack(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"   "}}

	d := style.NewExtractor(llm, logger.Nop()).Extract(context.Background(), "Acme", "beans", refs(2))

	assert.True(t, d.Degraded)
}

func TestExtract_NoImagesFallsBackWithoutCalls(t *testing.T) {
	llm := &scriptedLLM{}

	d := style.NewExtractor(llm, logger.Nop()).Extract(context.Background(), "Acme", "beans", nil)

	assert.True(t, d.Degraded)
	assert.Empty(t, llm.images)
}

func TestLimitSentences(t *testing.T) {
	assert.Equal(t, "One. Two! Three?", style.LimitSentences("One. Two! Three? Four.", 3))
	assert.Equal(t, "Uses 3.5 mm lens. Soft light.", style.LimitSentences("Uses 3.5 mm lens. Soft light.", 3))
	assert.Equal(t, "No terminator", style.LimitSentences("No terminator", 3))
}
