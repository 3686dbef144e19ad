package imagen_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/imagen"
	"adangle-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_ReturnsInlineImage(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-image:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"` +
			base64.StdEncoding.EncodeToString([]byte("png-bytes")) + `"}}]}}]}`))
	}))
	defer server.Close()

	client := imagen.NewClient(imagen.Options{APIKey: "test-key", BaseURL: server.URL, Model: "test-image"})
	data, err := client.Synthesize(context.Background(), "a bottle on a table", &models.ImageInput{MIMEType: "image/jpeg", Data: []byte("ref")})

	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	cfg := got["generationConfig"].(map[string]interface{})
	assert.Equal(t, []interface{}{"IMAGE"}, cfg["responseModalities"])
	parts := got["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
	assert.Len(t, parts, 2)
}

func TestSynthesize_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := imagen.NewClient(imagen.Options{APIKey: "k", BaseURL: server.URL})
	_, err := client.Synthesize(context.Background(), "prompt", nil)

	require.Error(t, err)
	assert.True(t, apperr.IsRateLimited(err))
	var pErr *apperr.ProviderError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 429, pErr.StatusCode)
}

func TestSynthesize_QuotaSignatureOnOtherStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"daily limit","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := imagen.NewClient(imagen.Options{BaseURL: server.URL}).Synthesize(context.Background(), "prompt", nil)

	assert.True(t, apperr.IsRateLimited(err))
}

func TestSynthesize_ServerErrorIsNotRateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`internal`))
	}))
	defer server.Close()

	_, err := imagen.NewClient(imagen.Options{BaseURL: server.URL}).Synthesize(context.Background(), "prompt", nil)

	require.Error(t, err)
	assert.False(t, apperr.IsRateLimited(err))
	assert.ErrorIs(t, err, apperr.ErrProviderFailure)
	assert.Equal(t, 1, calls)
}

func TestSynthesize_NoImageInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`))
	}))
	defer server.Close()

	_, err := imagen.NewClient(imagen.Options{BaseURL: server.URL}).Synthesize(context.Background(), "prompt", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image")
}

func TestSynthesize_EmptyPrompt(t *testing.T) {
	_, err := imagen.NewClient(imagen.Options{}).Synthesize(context.Background(), "  ", nil)

	assert.ErrorIs(t, err, apperr.ErrInputValidation)
}
