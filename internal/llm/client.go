// Package llm is the text-completion adapter backed by the Gemini SDK.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerName = "gemini-text"

type Options struct {
	APIKey string
	Model  string
	// Endpoint overrides the API host, mainly for tests.
	Endpoint string
	Logger   *logger.Logger
}

type Client struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{client: client, model: opts.Model, log: log.With("provider", providerName)}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Complete sends one prompt with optional images and returns the text reply.
func (c *Client) Complete(ctx context.Context, prompt string, images []models.ImageInput) (string, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MIMEType
		if mime == "" {
			mime = http.DetectContentType(img.Data)
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: img.Data})
	}
	parts = append(parts, genai.Text(prompt))

	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classify(err)
	}

	text := ResponseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &apperr.ProviderError{Provider: providerName, Err: errors.New("empty response")}
	}
	return text, nil
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func classify(err error) error {
	status := 0
	var apiErr *apierror.APIError
	var gErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPCode()
	case errors.As(err, &gErr):
		status = gErr.Code
	}
	return &apperr.ProviderError{
		Provider:    providerName,
		StatusCode:  status,
		RateLimited: status == http.StatusTooManyRequests || IsQuotaMessage(err.Error()),
		Err:         err,
	}
}

// IsQuotaMessage matches the quota exhaustion wording Gemini uses.
func IsQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "rate limit")
}
