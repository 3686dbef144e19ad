package synth_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/imageutil"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	data   []byte
	err    error
	calls  int
	prompt string
	ref    *models.ImageInput
}

func (p *stubProvider) Synthesize(_ context.Context, prompt string, ref *models.ImageInput) ([]byte, error) {
	p.calls++
	p.prompt = prompt
	p.ref = ref
	return p.data, p.err
}

type panickingProvider struct{}

func (panickingProvider) Synthesize(context.Context, string, *models.ImageInput) ([]byte, error) {
	var m map[string]int
	m["boom"] = 1
	return nil, nil
}

func pngOf(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	data, err := imageutil.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func request() synth.Request {
	return synth.Request{
		Concept:            models.CreativeConcept{Index: 2, VisualPrompt: "Morning kitchen, soft window light", Hook: "Brew less, sip more"},
		BrandName:          "Acme Coffee",
		ProductDescription: "Cold brew concentrate",
		Style:              models.StyleDirective{Directive: "Warm natural light, muted earth tones."},
		ProductImage:       &models.ImageInput{MIMEType: "image/png", Data: []byte{1}},
	}
}

func TestRender_Success(t *testing.T) {
	provider := &stubProvider{data: pngOf(t, 512, 768)}
	s := synth.New(provider, logger.Nop())

	res := s.Render(context.Background(), request())

	require.NoError(t, res.Err)
	assert.False(t, res.Placeholder)
	assert.Equal(t, 1, provider.calls)
	assert.NotNil(t, provider.ref)
	assert.Contains(t, provider.prompt, "Morning kitchen")
	assert.Contains(t, provider.prompt, "Warm natural light")

	img, _, err := imageutil.Decode(res.Image)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1080, 1080), img.Bounds())
}

func TestRender_FailureUsesPlaceholderWithoutRetry(t *testing.T) {
	provider := &stubProvider{err: errors.New("model overloaded")}
	s := synth.New(provider, logger.Nop())

	res := s.Render(context.Background(), request())

	assert.Equal(t, 1, provider.calls)
	assert.True(t, res.Placeholder)
	assert.False(t, res.RateLimited)
	assert.Error(t, res.Err)
	assert.Equal(t, synth.Placeholder(1080), res.Image)
}

func TestRender_UndecodableOutputUsesPlaceholder(t *testing.T) {
	s := synth.New(&stubProvider{data: []byte("garbage")}, logger.Nop())

	res := s.Render(context.Background(), request())

	assert.True(t, res.Placeholder)
	assert.Equal(t, synth.Placeholder(1080), res.Image)
}

func TestRender_RateLimitIsFlagged(t *testing.T) {
	provider := &stubProvider{err: &apperr.ProviderError{Provider: "gemini-image", StatusCode: 429, RateLimited: true, Err: errors.New("quota")}}
	s := synth.New(provider, logger.Nop())

	res := s.Render(context.Background(), request())

	assert.True(t, res.Placeholder)
	assert.True(t, res.RateLimited)
}

func TestRender_ProviderPanicUsesPlaceholder(t *testing.T) {
	s := synth.New(panickingProvider{}, logger.Nop())

	var res synth.Result
	require.NotPanics(t, func() {
		res = s.Render(context.Background(), request())
	})

	assert.True(t, res.Placeholder)
	assert.False(t, res.RateLimited)
	assert.ErrorIs(t, res.Err, apperr.ErrProviderFailure)
	assert.Contains(t, res.Err.Error(), "panicked")
	assert.Equal(t, synth.Placeholder(1080), res.Image)
}

func TestPlaceholder_CallersGetIndependentCopies(t *testing.T) {
	first := synth.Placeholder(1080)
	want := append([]byte(nil), first...)
	for i := range first {
		first[i] = 0
	}

	assert.Equal(t, want, synth.Placeholder(1080))
}

func TestPlaceholder_Gradient(t *testing.T) {
	data := synth.Placeholder(1080)
	assert.Equal(t, data, synth.Placeholder(1080))

	img, _, err := imageutil.Decode(data)
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{30, 30, 35}, []uint32{r >> 8, g >> 8, b >> 8})
	r, g, b, _ = img.At(1079, 1079).RGBA()
	assert.Equal(t, []uint32{50, 50, 60}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestSkipped(t *testing.T) {
	s := synth.New(&stubProvider{}, logger.Nop())

	res := s.Skipped(apperr.ErrRateLimited)

	assert.True(t, res.Placeholder)
	assert.True(t, res.RateLimited)
	assert.Equal(t, synth.Placeholder(1080), res.Image)
}
