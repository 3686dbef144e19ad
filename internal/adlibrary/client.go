// Package adlibrary searches the Meta Ad Library through SearchAPI and turns
// the results into reference candidates.
package adlibrary

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"github.com/go-resty/resty/v2"
)

const providerName = "searchapi"

var pageIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`view_all_page_id=(\d+)`),
	regexp.MustCompile(`page_id=(\d+)`),
}

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *logger.Logger
}

type Client struct {
	rest   *resty.Client
	apiKey string
	log    *logger.Logger
}

type SearchParams struct {
	PageID       string
	Query        string
	Country      string
	ActiveStatus string
	MediaType    string
	Limit        int
}

type searchResponse struct {
	Ads   []map[string]interface{} `json:"ads"`
	Error string                   `json:"error"`
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.searchapi.io"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{rest: rc, apiKey: opts.APIKey, log: log.With("provider", providerName)}
}

// Search performs a single ad library request. It does not retry.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]models.ReferenceCandidate, error) {
	params := map[string]string{
		"engine":        "meta_ad_library",
		"api_key":       c.apiKey,
		"country":       orDefault(p.Country, "all"),
		"ad_type":       "all",
		"active_status": orDefault(p.ActiveStatus, "all"),
		"media_type":    orDefault(p.MediaType, "image"),
	}
	switch {
	case p.PageID != "":
		params["page_id"] = p.PageID
	case strings.TrimSpace(p.Query) != "":
		params["q"] = strings.TrimSpace(p.Query)
	default:
		return nil, apperr.Validation("either page id or query is required")
	}

	var out searchResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/api/v1/search")
	if err != nil {
		return nil, &apperr.ProviderError{Provider: providerName, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	if resp.IsError() {
		return nil, &apperr.ProviderError{
			Provider:    providerName,
			StatusCode:  resp.StatusCode(),
			RateLimited: resp.StatusCode() == http.StatusTooManyRequests,
			Err:         fmt.Errorf("search failed: %s", strings.TrimSpace(string(resp.Body()))),
		}
	}
	if out.Error != "" {
		return nil, &apperr.ProviderError{Provider: providerName, StatusCode: resp.StatusCode(), Err: fmt.Errorf("search failed: %s", out.Error)}
	}

	ads := out.Ads
	if p.Limit > 0 && len(ads) > p.Limit {
		ads = ads[:p.Limit]
	}
	candidates := ParseAds(ads)
	c.log.Info("ad library search complete",
		"page_id", p.PageID,
		"query", p.Query,
		"returned", len(out.Ads),
		"usable", len(candidates),
	)
	return candidates, nil
}

// DownloadImage fetches an ad image from an absolute URL.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, "", apperr.Validation("image url %q is not absolute", imageURL)
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, "", fmt.Errorf("failed to download image: empty body")
	}
	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

// ExtractPageIDOrQuery reads an Ad Library page URL or treats input as a
// keyword query. A facebook.com URL without a page id is rejected.
func ExtractPageIDOrQuery(input string) (pageID, query string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", apperr.Validation("ad library input is empty")
	}
	for _, re := range pageIDPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1], "", nil
		}
	}
	if strings.Contains(strings.ToLower(input), "facebook.com") {
		return "", "", apperr.Validation("could not find a page id in %q", input)
	}
	return "", input, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
