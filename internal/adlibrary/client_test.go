package adlibrary_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adangle-backend/internal/adlibrary"
	"adangle-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "ads": [
    {
      "ad_archive_id": "111",
      "page_id": "987",
      "start_date": "2025-01-02T08:00:00Z",
      "end_date": "2025-02-01T08:00:00Z",
      "is_active": true,
      "snapshot": {
        "page_name": "Rival Roasters",
        "body": {"text": "Coffee #6. It's only Tuesday."},
        "images": [{"original_image_url": "https://cdn.example.com/a.jpg", "resized_image_url": "https://cdn.example.com/a_small.jpg"}]
      }
    },
    {
      "archive_id": 222,
      "start_date": 1735689600,
      "body_text": "Fallback body",
      "snapshot": {"body": "Snapshot body string", "cards": [{"original_image_url": "https://cdn.example.com/card.jpg"}]}
    },
    {
      "id": "333",
      "thumbnail": "https://cdn.example.com/thumb.jpg"
    },
    {
      "snapshot": {"body": {"text": "no id"}}
    }
  ]
}`

func TestSearch_ParsesCandidates(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	client := adlibrary.New(adlibrary.Options{APIKey: "secret", BaseURL: server.URL})
	got, err := client.Search(context.Background(), adlibrary.SearchParams{PageID: "987", Limit: 50})
	require.NoError(t, err)

	assert.Equal(t, []string{"meta_ad_library"}, query["engine"])
	assert.Equal(t, []string{"secret"}, query["api_key"])
	assert.Equal(t, []string{"987"}, query["page_id"])
	assert.Equal(t, []string{"all"}, query["active_status"])
	assert.Equal(t, []string{"image"}, query["media_type"])
	assert.Empty(t, query["q"])

	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "111", first.AdID)
	assert.Equal(t, "987", first.PageID)
	assert.Equal(t, "Rival Roasters", first.PageName)
	assert.Equal(t, "Coffee #6. It's only Tuesday.", first.Text)
	assert.Equal(t, "https://cdn.example.com/a_small.jpg", first.ImageURL)
	assert.Equal(t, "2025-01-02T08:00:00Z", first.DeliveryStart)
	require.NotNil(t, first.IsActive)
	assert.True(t, *first.IsActive)

	second := got[1]
	assert.Equal(t, "222", second.AdID)
	assert.Equal(t, "unknown", second.PageID)
	assert.Equal(t, "Snapshot body string", second.Text)
	assert.Equal(t, "https://cdn.example.com/card.jpg", second.ImageURL)
	assert.Equal(t, "2025-01-01T00:00:00Z", second.DeliveryStart)
	assert.Nil(t, second.IsActive)

	third := got[2]
	assert.Equal(t, "333", third.AdID)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", third.ImageURL)
	assert.Empty(t, third.DeliveryStart)
}

func TestSearch_QueryAndLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cold brew", r.URL.Query().Get("q"))
		assert.Equal(t, "US", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	got, err := adlibrary.New(adlibrary.Options{BaseURL: server.URL}).
		Search(context.Background(), adlibrary.SearchParams{Query: " cold brew ", Country: "US", Limit: 1})

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearch_UpstreamErrorIsSingleCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "slow down"})
	}))
	defer server.Close()

	_, err := adlibrary.New(adlibrary.Options{BaseURL: server.URL}).
		Search(context.Background(), adlibrary.SearchParams{Query: "coffee"})

	require.Error(t, err)
	assert.True(t, apperr.IsRateLimited(err))
	assert.Equal(t, 1, calls)
}

func TestSearch_RequiresPageOrQuery(t *testing.T) {
	_, err := adlibrary.New(adlibrary.Options{}).Search(context.Background(), adlibrary.SearchParams{})

	assert.ErrorIs(t, err, apperr.ErrInputValidation)
}

func TestDownloadImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer server.Close()

	client := adlibrary.New(adlibrary.Options{})

	data, ct, err := client.DownloadImage(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Len(t, data, 4)

	_, _, err = client.DownloadImage(context.Background(), server.URL+"/missing.jpg")
	assert.Error(t, err)

	_, _, err = client.DownloadImage(context.Background(), "not-a-url")
	assert.ErrorIs(t, err, apperr.ErrInputValidation)
}

func TestExtractPageIDOrQuery(t *testing.T) {
	page, query, err := adlibrary.ExtractPageIDOrQuery("https://www.facebook.com/ads/library/?active_status=all&view_all_page_id=123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", page)
	assert.Empty(t, query)

	page, _, err = adlibrary.ExtractPageIDOrQuery("https://example.com/?page_id=42")
	require.NoError(t, err)
	assert.Equal(t, "42", page)

	page, query, err = adlibrary.ExtractPageIDOrQuery("  nike running shoes ")
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, "nike running shoes", query)

	_, _, err = adlibrary.ExtractPageIDOrQuery("https://www.facebook.com/ads/library/?q=shoes")
	assert.ErrorIs(t, err, apperr.ErrInputValidation)

	_, _, err = adlibrary.ExtractPageIDOrQuery("   ")
	assert.ErrorIs(t, err, apperr.ErrInputValidation)
}
