package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adangle-backend/internal/adlibrary"
	"adangle-backend/internal/imageutil"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/ranking"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentDownloads = 5

type SearchDefaults struct {
	Country      string
	ActiveStatus string
	MediaType    string
	Limit        int
}

type AnalyzeInput struct {
	SessionID    uuid.UUID
	Input        string
	Country      string
	ActiveStatus string
	MediaType    string
}

// ReferenceView is a stored reference with a fresh view URL for its image.
type ReferenceView struct {
	models.RankedReference
	URL string
}

type AnalyzeResult struct {
	SessionID     uuid.UUID
	AdsFound      int
	AdsDownloaded int
	Top           []ReferenceView
}

type CompetitorService struct {
	records  RecordStore
	objects  ObjectStore
	search   AdSearcher
	engine   *ranking.Engine
	bucket   string
	urls     URLPolicy
	defaults SearchDefaults
	now      func() time.Time
	log      *logger.Logger
}

func NewCompetitorService(
	records RecordStore,
	objects ObjectStore,
	search AdSearcher,
	engine *ranking.Engine,
	bucket string,
	urls URLPolicy,
	defaults SearchDefaults,
	log *logger.Logger,
) *CompetitorService {
	if log == nil {
		log = logger.Nop()
	}
	return &CompetitorService{
		records:  records,
		objects:  objects,
		search:   search,
		engine:   engine,
		bucket:   bucket,
		urls:     urls,
		defaults: defaults,
		now:      time.Now,
		log:      log.With("service", "competitors"),
	}
}

// Analyze searches the ad library once, ranks the results against what the
// session already holds and stores every new reference. Nothing is stored
// when the search yields no usable candidates.
func (s *CompetitorService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	pageID, query, err := adlibrary.ExtractPageIDOrQuery(in.Input)
	if err != nil {
		return nil, err
	}
	if _, err := s.records.GetSession(ctx, in.SessionID); err != nil {
		return nil, err
	}

	stored, err := s.records.ListCompetitorAds(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]models.RankedReference, len(stored))
	for _, ref := range stored {
		existing[ref.AdID] = ref
	}

	activeStatus := firstNonEmpty(in.ActiveStatus, s.defaults.ActiveStatus, "all")
	candidates, err := s.search.Search(ctx, adlibrary.SearchParams{
		PageID:       pageID,
		Query:        query,
		Country:      firstNonEmpty(in.Country, s.defaults.Country, "all"),
		ActiveStatus: activeStatus,
		MediaType:    firstNonEmpty(in.MediaType, s.defaults.MediaType, "image"),
		Limit:        s.defaults.Limit,
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.engine.Rank(ranking.Input{
		Candidates:            candidates,
		Existing:              existing,
		UpstreamFiltersActive: strings.EqualFold(activeStatus, "active"),
	})
	if err != nil {
		s.log.Info("no usable candidates", "session_id", in.SessionID, "page_id", pageID, "query", query)
		return nil, err
	}

	fresh := make([]models.RankedReference, len(ranked.Fresh))
	copy(fresh, ranked.Fresh)
	downloaded := s.storeImages(ctx, in.SessionID, fresh)

	persisted := make(map[string]models.RankedReference, len(fresh))
	for _, ref := range fresh {
		ref.SessionID = in.SessionID
		record, created, err := s.records.CreateCompetitorAd(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to store reference %s: %w", ref.AdID, err)
		}
		if !created {
			s.log.Debug("reference already stored", "session_id", in.SessionID, "ad_id", ref.AdID)
		}
		persisted[ref.AdID] = *record
	}

	all := make([]models.RankedReference, len(ranked.All))
	for i, ref := range ranked.All {
		if record, ok := persisted[ref.AdID]; ok {
			ref = record
		}
		all[i] = ref
	}
	ranking.Sort(all)

	top := ranking.Top(all, s.engine.TopK())
	s.log.Info("competitor analysis complete",
		"session_id", in.SessionID,
		"ads_found", len(candidates),
		"new", len(fresh),
		"downloaded", downloaded,
	)
	return &AnalyzeResult{
		SessionID:     in.SessionID,
		AdsFound:      len(candidates),
		AdsDownloaded: downloaded,
		Top:           s.views(ctx, top),
	}, nil
}

// List returns every stored reference for the session, best first, with
// days running recomputed for display. Scores are left as stored.
func (s *CompetitorService) List(ctx context.Context, sessionID uuid.UUID) ([]ReferenceView, error) {
	if _, err := s.records.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	refs, err := s.records.ListCompetitorAds(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range refs {
		if days, ok := ranking.DaysRunning(refs[i].DeliveryStart, now); ok {
			refs[i].DaysRunning = days
		}
	}
	return s.views(ctx, refs), nil
}

// storeImages copies each reference image into object storage. A reference
// whose image cannot be fetched or stored is kept without one.
func (s *CompetitorService) storeImages(ctx context.Context, sessionID uuid.UUID, refs []models.RankedReference) int {
	var g errgroup.Group
	g.SetLimit(maxConcurrentDownloads)

	stored := make([]bool, len(refs))
	for i := range refs {
		if refs[i].ImageURL == "" {
			continue
		}
		g.Go(func() error {
			data, contentType, err := s.search.DownloadImage(ctx, refs[i].ImageURL)
			if err != nil {
				s.log.Warn("failed to download reference image", "ad_id", refs[i].AdID, "error", err)
				return nil
			}
			if !strings.HasPrefix(contentType, "image/") {
				contentType = imageutil.ContentType(data)
			}
			objectPath := fmt.Sprintf("%s/%s%s", sessionID, uuid.New(), extension(contentType))
			if _, err := s.objects.Put(ctx, s.bucket, objectPath, data, contentType); err != nil {
				s.log.Warn("failed to store reference image", "ad_id", refs[i].AdID, "error", err)
				return nil
			}
			refs[i].StoragePath = objectPath
			stored[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range stored {
		if ok {
			n++
		}
	}
	return n
}

func (s *CompetitorService) views(ctx context.Context, refs []models.RankedReference) []ReferenceView {
	out := make([]ReferenceView, 0, len(refs))
	for _, ref := range refs {
		view := ReferenceView{RankedReference: ref}
		if ref.HasStoredImage() {
			url, err := s.objects.Sign(ctx, s.bucket, ref.StoragePath, s.urls.ViewTTL, false)
			if err != nil {
				s.log.Warn("failed to sign reference url", "ad_id", ref.AdID, "error", err)
			}
			view.URL = url
		}
		out = append(out, view)
	}
	return out
}

func extension(contentType string) string {
	if ext, ok := allowedImageTypes[contentType]; ok {
		return ext
	}
	return ".jpg"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
