package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/ranking"
	"adangle-backend/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format(time.RFC3339)
}

type competitorFixture struct {
	records *memoryRecords
	objects *memoryObjects
	search  *fakeSearch
	svc     *services.CompetitorService
	session uuid.UUID
}

func newCompetitorFixture(t *testing.T, candidates []models.ReferenceCandidate) *competitorFixture {
	t.Helper()
	f := &competitorFixture{
		records: newMemoryRecords(),
		objects: newMemoryObjects(),
		search:  &fakeSearch{candidates: candidates, badImages: map[string]bool{}},
	}
	f.svc = services.NewCompetitorService(
		f.records,
		f.objects,
		f.search,
		ranking.NewEngine(ranking.Options{TopK: 2}),
		testBuckets.CompetitorAds,
		services.URLPolicy{ViewTTL: time.Hour},
		services.SearchDefaults{Limit: 50},
		logger.Nop(),
	)
	session, err := f.records.CreateSession(context.Background(), "Acme")
	require.NoError(t, err)
	f.session = session.ID
	return f
}

func (f *competitorFixture) analyze(t *testing.T) (*services.AnalyzeResult, error) {
	t.Helper()
	return f.svc.Analyze(context.Background(), services.AnalyzeInput{
		SessionID: f.session,
		Input:     "https://www.facebook.com/ads/library/?view_all_page_id=42",
	})
}

func sampleCandidates() []models.ReferenceCandidate {
	return []models.ReferenceCandidate{
		{AdID: "young", PageID: "42", DeliveryStart: daysAgo(5), IsActive: boolPtr(true), ImageURL: "https://img/young.png"},
		{AdID: "veteran", PageID: "42", DeliveryStart: daysAgo(10), IsActive: boolPtr(true), ImageURL: "https://img/veteran.png"},
		{AdID: "inactive", PageID: "42", DeliveryStart: daysAgo(10), IsActive: boolPtr(false), ImageURL: "https://img/broken.png"},
		{AdID: "undated", PageID: "42"},
	}
}

func TestAnalyze_RanksAndStores(t *testing.T) {
	f := newCompetitorFixture(t, sampleCandidates())
	f.search.badImages["https://img/broken.png"] = true

	res, err := f.analyze(t)

	require.NoError(t, err)
	assert.Equal(t, 4, res.AdsFound)
	assert.Equal(t, 2, res.AdsDownloaded)
	assert.Equal(t, 4, f.records.competitorCount())

	require.Len(t, res.Top, 2)
	assert.Equal(t, "veteran", res.Top[0].AdID)
	assert.Equal(t, 15.0, res.Top[0].WinnerScore)
	assert.NotEmpty(t, res.Top[0].URL)
	assert.Equal(t, "inactive", res.Top[1].AdID)
	assert.Equal(t, 10.0, res.Top[1].WinnerScore)
	assert.Empty(t, res.Top[1].URL, "failed download keeps the record without an image")

	all, err := f.svc.List(context.Background(), f.session)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].WinnerScore, all[i].WinnerScore)
	}
	for _, ref := range all {
		if ref.AdID == "young" {
			assert.Equal(t, 0.0, ref.WinnerScore)
			assert.True(t, ref.HasStoredImage())
		}
	}
}

func TestAnalyze_ZeroCandidatesPersistsNothing(t *testing.T) {
	f := newCompetitorFixture(t, nil)

	res, err := f.analyze(t)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrNoCandidatesFound)
	assert.Equal(t, 1, f.search.calls)
	assert.Equal(t, 0, f.records.competitorCount())
	assert.Equal(t, 0, f.objects.puts)
}

func TestAnalyze_ResubmissionReturnsFirstRecord(t *testing.T) {
	f := newCompetitorFixture(t, sampleCandidates())

	first, err := f.analyze(t)
	require.NoError(t, err)
	second, err := f.analyze(t)
	require.NoError(t, err)

	assert.Equal(t, 4, f.records.competitorCount())
	require.Len(t, second.Top, len(first.Top))
	for i := range first.Top {
		assert.Equal(t, first.Top[i].ID, second.Top[i].ID)
		assert.Equal(t, first.Top[i].CreatedAt, second.Top[i].CreatedAt)
	}
	assert.Equal(t, 0, second.AdsDownloaded)
}

func TestAnalyze_ConcurrentRequestsDoNotDuplicate(t *testing.T) {
	f := newCompetitorFixture(t, sampleCandidates())

	var wg sync.WaitGroup
	results := make([]*services.AnalyzeResult, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.analyze(t)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, f.records.competitorCount())
	ids := make(map[uuid.UUID]struct{})
	for _, res := range results {
		require.NotNil(t, res)
		for _, ref := range res.Top {
			ids[ref.ID] = struct{}{}
		}
	}
	assert.Len(t, ids, 2, "every caller sees the same stored identities")
}

func TestAnalyze_ValidatesBeforeSearching(t *testing.T) {
	f := newCompetitorFixture(t, sampleCandidates())

	_, err := f.svc.Analyze(context.Background(), services.AnalyzeInput{
		SessionID: f.session,
		Input:     "https://www.facebook.com/ads/library/?q=coffee",
	})
	assert.ErrorIs(t, err, apperr.ErrInputValidation)

	_, err = f.svc.Analyze(context.Background(), services.AnalyzeInput{SessionID: uuid.New(), Input: "coffee"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, 0, f.search.calls)
}

func TestAnalyze_SearchFailurePropagates(t *testing.T) {
	f := newCompetitorFixture(t, nil)
	f.search.err = &apperr.ProviderError{Provider: "searchapi", StatusCode: 429, RateLimited: true}

	_, err := f.analyze(t)

	assert.True(t, apperr.IsRateLimited(err))
	assert.Equal(t, 1, f.search.calls)
}
