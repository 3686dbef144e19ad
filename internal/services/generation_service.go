package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/compositor"
	"adangle-backend/internal/concepts"
	"adangle-backend/internal/imageutil"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/style"
	"adangle-backend/internal/supabase"
	"adangle-backend/internal/synth"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Stage string

const (
	StageCollectingInputs   Stage = "collecting_inputs"
	StageExtractingStyle    Stage = "extracting_style"
	StageGeneratingConcepts Stage = "generating_concepts"
	StageSynthesizingImages Stage = "synthesizing_images"
	StageCompositing        Stage = "compositing"
	StagePersisting         Stage = "persisting"
	StageComplete           Stage = "complete"
	StageAborted            Stage = "aborted"
)

const (
	eventStageChanged = "stage_changed"
	eventAssetReady   = "asset_ready"
	eventRunComplete  = "run_complete"
	eventRunFailed    = "run_failed"
)

type GenerateInput struct {
	SessionID uuid.UUID
	Params    models.GenerationParams
}

type GenerationService struct {
	records     RecordStore
	objects     ObjectStore
	extractor   *style.Extractor
	generator   *concepts.Generator
	synthesizer *synth.Synthesizer
	compositor  *compositor.Compositor
	events      EventPublisher
	buckets     Buckets
	urls        URLPolicy
	concurrency int
	log         *logger.Logger
}

// GenerationDeps wires a GenerationService. Events may be nil.
type GenerationDeps struct {
	Records     RecordStore
	Objects     ObjectStore
	Extractor   *style.Extractor
	Generator   *concepts.Generator
	Synthesizer *synth.Synthesizer
	Compositor  *compositor.Compositor
	Events      EventPublisher
	Buckets     Buckets
	URLs        URLPolicy
	Concurrency int
	Logger      *logger.Logger
}

func NewGenerationService(deps GenerationDeps) *GenerationService {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 || concurrency > models.MaxConcepts {
		concurrency = models.MaxConcepts
	}
	return &GenerationService{
		records:     deps.Records,
		objects:     deps.Objects,
		extractor:   deps.Extractor,
		generator:   deps.Generator,
		synthesizer: deps.Synthesizer,
		compositor:  deps.Compositor,
		events:      deps.Events,
		buckets:     deps.Buckets,
		urls:        deps.URLs,
		concurrency: concurrency,
		log:         log.With("service", "generation"),
	}
}

// runInputs is everything read from the session during CollectingInputs.
// It is not modified for the rest of the run.
type runInputs struct {
	productImage *models.ImageInput
	logo         []byte
	styleImages  []models.ImageInput
}

// Run executes one generation run for a session. A run either persists one
// asset per concept or aborts before any asset is written. When the image
// provider reports a rate limit the run still completes with placeholders and
// the returned error wraps apperr.ErrRateLimited alongside the run.
func (s *GenerationService) Run(ctx context.Context, in GenerateInput) (*models.GenerationRun, error) {
	start := time.Now()
	runID := uuid.New()
	params, err := normalizeParams(in.Params)
	if err != nil {
		return nil, err
	}
	log := s.log.With("session_id", in.SessionID, "run_id", runID)

	s.stage(ctx, log, in.SessionID, runID, StageCollectingInputs)
	inputs, err := s.collectInputs(ctx, log, in.SessionID)
	if err != nil {
		return nil, s.abort(ctx, log, in.SessionID, runID, StageCollectingInputs, err)
	}

	s.stage(ctx, log, in.SessionID, runID, StageExtractingStyle)
	directive := s.extractor.Extract(ctx, params.BrandName, params.ProductDescription, inputs.styleImages)
	if directive.Degraded {
		log.Warn("using degraded style directive", "error", apperr.ErrDegradedStyle, "source_images", directive.SourceImages)
	}

	s.stage(ctx, log, in.SessionID, runID, StageGeneratingConcepts)
	batch, err := s.generator.Generate(ctx, concepts.Brief{
		BrandName:           params.BrandName,
		ProductDescription:  params.ProductDescription,
		CustomerDescription: params.CustomerDescription,
		Style:               directive,
		Count:               params.NumConcepts,
	})
	if err == nil {
		err = validateConcepts(batch)
	}
	if err != nil {
		return nil, s.abort(ctx, log, in.SessionID, runID, StageGeneratingConcepts, err)
	}

	s.stage(ctx, log, in.SessionID, runID, StageSynthesizingImages)
	results, rateLimited := s.synthesize(ctx, params, directive, inputs.productImage, batch)

	s.stage(ctx, log, in.SessionID, runID, StageCompositing)
	assets := s.composite(log, batch, results, inputs.logo)

	s.stage(ctx, log, in.SessionID, runID, StagePersisting)
	run := models.GenerationRun{
		ID:             runID,
		SessionID:      in.SessionID,
		Params:         params,
		StyleDirective: directive.Directive,
		DegradedStyle:  directive.Degraded,
		RateLimited:    rateLimited,
	}
	run.Assets, err = s.persistAssets(ctx, log, run, assets)
	if err != nil {
		return nil, s.abort(ctx, log, in.SessionID, runID, StagePersisting, err)
	}
	run.TotalLatency = time.Since(start)

	stored, err := s.records.CreateGenerationRun(ctx, run)
	if err != nil {
		log.Error("failed to store run record", "error", err)
		return nil, s.abort(ctx, log, in.SessionID, runID, StagePersisting, err)
	}
	stored.Assets = run.Assets

	s.publish(ctx, log, in.SessionID, eventRunComplete, supabase.RunCompletedPayload(runID, len(run.Assets), rateLimited))
	log.Info("generation run complete",
		"stage", StageComplete,
		"assets", len(run.Assets),
		"placeholders", countPlaceholders(run.Assets),
		"degraded_style", directive.Degraded,
		"rate_limited", rateLimited,
		"latency", run.TotalLatency,
	)

	if rateLimited {
		return stored, fmt.Errorf("%w: image provider quota exhausted during run %s", apperr.ErrRateLimited, runID)
	}
	return stored, nil
}

// Runs lists a session's runs with fresh view URLs per asset.
func (s *GenerationService) Runs(ctx context.Context, sessionID uuid.UUID) ([]models.GenerationRun, map[uuid.UUID]string, error) {
	if _, err := s.records.GetSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}
	runs, err := s.records.ListGenerationRuns(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	urls := make(map[uuid.UUID]string)
	for _, run := range runs {
		for _, asset := range run.Assets {
			urls[asset.ID] = s.viewURL(ctx, asset)
		}
	}
	return runs, urls, nil
}

// DownloadURL signs a forced-download URL for a generated asset.
func (s *GenerationService) DownloadURL(ctx context.Context, assetID uuid.UUID) (string, time.Duration, error) {
	asset, err := s.records.GetGeneratedAsset(ctx, assetID)
	if err != nil {
		return "", 0, err
	}
	url, err := s.objects.Sign(ctx, s.buckets.GeneratedAds, asset.StoragePath, s.urls.DownloadTTL, true)
	if err != nil {
		return "", 0, err
	}
	return url, s.urls.DownloadTTL, nil
}

func (s *GenerationService) ViewURL(ctx context.Context, asset models.RenderedAsset) string {
	return s.viewURL(ctx, asset)
}

func (s *GenerationService) collectInputs(ctx context.Context, log *logger.Logger, sessionID uuid.UUID) (*runInputs, error) {
	if _, err := s.records.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	assets, err := s.records.ListUserAssets(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	grouped := models.GroupAssets(assets)
	if grouped.ProductImage == nil {
		return nil, apperr.Validation("session %s has no product image", sessionID)
	}

	product, err := s.objects.Get(ctx, s.buckets.UserAssets, grouped.ProductImage.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load product image: %w", err)
	}
	inputs := &runInputs{
		productImage: &models.ImageInput{MIMEType: grouped.ProductImage.MimeType, Data: product},
	}

	if grouped.Logo != nil {
		logo, err := s.objects.Get(ctx, s.buckets.UserAssets, grouped.Logo.StoragePath)
		if err != nil {
			log.Warn("failed to load logo, compositing without it", "error", err)
		} else {
			inputs.logo = logo
		}
	}

	for _, a := range grouped.BrandImages {
		if len(inputs.styleImages) == style.MaxReferenceImages {
			break
		}
		data, err := s.objects.Get(ctx, s.buckets.UserAssets, a.StoragePath)
		if err != nil {
			log.Warn("failed to load brand image", "asset_id", a.ID, "error", err)
			continue
		}
		inputs.styleImages = append(inputs.styleImages, models.ImageInput{MIMEType: a.MimeType, Data: data})
	}

	if len(inputs.styleImages) < style.MaxReferenceImages {
		inputs.styleImages = append(inputs.styleImages, s.referenceImages(ctx, log, sessionID, style.MaxReferenceImages-len(inputs.styleImages))...)
	}
	return inputs, nil
}

// referenceImages loads up to n stored competitor images, best score first.
func (s *GenerationService) referenceImages(ctx context.Context, log *logger.Logger, sessionID uuid.UUID, n int) []models.ImageInput {
	refs, err := s.records.ListCompetitorAds(ctx, sessionID)
	if err != nil {
		log.Warn("failed to list competitor references", "error", err)
		return nil
	}
	var out []models.ImageInput
	for _, ref := range refs {
		if len(out) == n {
			break
		}
		if !ref.HasStoredImage() {
			continue
		}
		data, err := s.objects.Get(ctx, s.buckets.CompetitorAds, ref.StoragePath)
		if err != nil {
			log.Warn("failed to load reference image", "ad_id", ref.AdID, "error", err)
			continue
		}
		out = append(out, models.ImageInput{MIMEType: contentTypeOf(data), Data: data})
	}
	return out
}

// synthesize fans out one task per concept and waits for all of them. Once a
// task reports a rate limit, tasks that have not started yet skip the
// provider and take the placeholder.
func (s *GenerationService) synthesize(
	ctx context.Context,
	params models.GenerationParams,
	directive models.StyleDirective,
	product *models.ImageInput,
	batch []models.CreativeConcept,
) ([]synth.Result, bool) {
	results := make([]synth.Result, len(batch))
	var rateLimited atomic.Bool

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, concept := range batch {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("synthesis task panicked", "concept", concept.Index, "panic", r)
					results[i] = s.synthesizer.Skipped(fmt.Errorf("%w: synthesis panicked: %v", apperr.ErrProviderFailure, r))
				}
			}()
			if rateLimited.Load() {
				results[i] = s.synthesizer.Skipped(fmt.Errorf("%w: skipped after earlier quota signal", apperr.ErrRateLimited))
				return nil
			}
			res := s.synthesizer.Render(ctx, synth.Request{
				Concept:            concept,
				BrandName:          params.BrandName,
				ProductDescription: params.ProductDescription,
				Style:              directive,
				ProductImage:       product,
			})
			if res.RateLimited {
				rateLimited.Store(true)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, rateLimited.Load()
}

// composite burns the hook and logo into each background. A failed composite
// keeps the background alone.
func (s *GenerationService) composite(log *logger.Logger, batch []models.CreativeConcept, results []synth.Result, logo []byte) []models.RenderedAsset {
	assets := make([]models.RenderedAsset, len(batch))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, concept := range batch {
		g.Go(func() error {
			assets[i] = models.RenderedAsset{
				ConceptIndex: concept.Index,
				Concept:      concept,
				Background:   results[i].Image,
				Latency:      results[i].Latency,
				Placeholder:  results[i].Placeholder,
			}
			defer func() {
				if r := recover(); r != nil {
					log.Error("compositing panicked, keeping background", "concept", concept.Index, "panic", r)
				}
			}()
			composite, err := s.compositor.Compose(assets[i].Background, concept.Hook, logo)
			if err != nil {
				log.Warn("compositing failed, keeping background", "concept", concept.Index, "error", err)
				return nil
			}
			assets[i].Composite = composite
			return nil
		})
	}
	_ = g.Wait()

	return assets
}

// validateConcepts rejects the whole batch when any concept breaks the hook
// length rule.
func validateConcepts(batch []models.CreativeConcept) error {
	for _, c := range batch {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrConceptGenerationFailed, err)
		}
	}
	return nil
}

// persistAssets writes each asset independently. Assets already written are
// kept when a later one fails; the run fails only if none could be written.
func (s *GenerationService) persistAssets(ctx context.Context, log *logger.Logger, run models.GenerationRun, assets []models.RenderedAsset) ([]models.RenderedAsset, error) {
	out := make([]models.RenderedAsset, 0, len(assets))
	var errs []error
	for _, asset := range assets {
		asset.RunID = run.ID
		asset.SessionID = run.SessionID
		objectPath := fmt.Sprintf("%s/%s/concept_%d.png", run.SessionID, run.ID, asset.ConceptIndex)

		if _, err := s.objects.Put(ctx, s.buckets.GeneratedAds, objectPath, asset.Output(), "image/png"); err != nil {
			log.Error("failed to store generated image", "concept", asset.ConceptIndex, "error", err)
			errs = append(errs, err)
			continue
		}
		asset.StoragePath = objectPath

		stored, err := s.records.CreateGeneratedAsset(ctx, asset)
		if err != nil {
			log.Error("failed to record generated asset", "concept", asset.ConceptIndex, "error", err)
			errs = append(errs, err)
			continue
		}
		asset.ID = stored.ID
		asset.CreatedAt = stored.CreatedAt
		out = append(out, asset)

		s.publish(ctx, log, run.SessionID, eventAssetReady, supabase.AssetReadyPayload(run.ID, asset.ConceptIndex, asset.Placeholder))
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to persist any generated asset: %w", errors.Join(errs...))
	}
	return out, nil
}

func (s *GenerationService) viewURL(ctx context.Context, asset models.RenderedAsset) string {
	url, err := s.objects.Sign(ctx, s.buckets.GeneratedAds, asset.StoragePath, s.urls.ViewTTL, false)
	if err != nil {
		s.log.Warn("failed to sign generated asset url", "asset_id", asset.ID, "error", err)
	}
	return url
}

func (s *GenerationService) stage(ctx context.Context, log *logger.Logger, sessionID, runID uuid.UUID, stage Stage) {
	log.Debug("generation stage", "stage", stage)
	s.publish(ctx, log, sessionID, eventStageChanged, supabase.StageChangedPayload(runID, string(stage)))
}

func (s *GenerationService) abort(ctx context.Context, log *logger.Logger, sessionID, runID uuid.UUID, from Stage, err error) error {
	log.Warn("generation run aborted", "stage", StageAborted, "failed_stage", from, "error", err)
	s.publish(ctx, log, sessionID, eventRunFailed, supabase.RunFailedPayload(runID, err.Error()))
	return err
}

func (s *GenerationService) publish(ctx context.Context, log *logger.Logger, sessionID uuid.UUID, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRunEvent(ctx, sessionID, event, payload); err != nil {
		log.Debug("failed to publish run event", "event", event, "error", err)
	}
}

func normalizeParams(p models.GenerationParams) (models.GenerationParams, error) {
	p.BrandName = strings.TrimSpace(p.BrandName)
	p.ProductDescription = strings.TrimSpace(p.ProductDescription)
	p.CustomerDescription = strings.TrimSpace(p.CustomerDescription)
	switch {
	case p.BrandName == "":
		return p, apperr.Validation("brand name is required")
	case p.ProductDescription == "":
		return p, apperr.Validation("product description is required")
	case p.NumConcepts < 0 || p.NumConcepts > models.MaxConcepts:
		return p, apperr.Validation("num_concepts must be between 1 and %d", models.MaxConcepts)
	case p.NumConcepts == 0:
		p.NumConcepts = models.MaxConcepts
	}
	return p, nil
}

func countPlaceholders(assets []models.RenderedAsset) int {
	n := 0
	for _, a := range assets {
		if a.Placeholder {
			n++
		}
	}
	return n
}

func contentTypeOf(data []byte) string {
	ct := imageutil.ContentType(data)
	if _, ok := allowedImageTypes[ct]; ok {
		return ct
	}
	return "image/jpeg"
}
