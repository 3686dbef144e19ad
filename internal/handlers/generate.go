package handlers

import (
	"context"
	"net/http"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"adangle-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type generationService interface {
	Run(ctx context.Context, in services.GenerateInput) (*models.GenerationRun, error)
	Runs(ctx context.Context, sessionID uuid.UUID) ([]models.GenerationRun, map[uuid.UUID]string, error)
	DownloadURL(ctx context.Context, assetID uuid.UUID) (string, time.Duration, error)
	ViewURL(ctx context.Context, asset models.RenderedAsset) string
}

type GenerateHandler struct {
	generation generationService
	log        *logger.Logger
}

func NewGenerateHandler(generation generationService, log *logger.Logger) *GenerateHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GenerateHandler{
		generation: generation,
		log:        log,
	}
}

// Generate godoc
// @Summary     Generate ad creatives
// @Description Runs the creative pipeline for a session: style extraction, concept generation,
// @Description one image per concept and text/logo compositing. Concepts whose image could not
// @Description be synthesized carry a placeholder background. When the image provider reports a
// @Description quota limit the run is still returned with rate_limited set and a Retry-After header.
// @Tags        generate
// @Accept      json
// @Produce     json
// @Param       request body models.GenerateRequest true "Generation parameters"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session_id", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	run, err := h.generation.Run(ctx, services.GenerateInput{
		SessionID: sessionID,
		Params: models.GenerationParams{
			BrandName:           req.BrandName,
			ProductDescription:  req.ProductDescription,
			CustomerDescription: req.CustomerDescription,
			NumConcepts:         req.NumConcepts,
		},
	})
	if err != nil && (run == nil || !apperr.IsRateLimited(err)) {
		respondError(c, err, "failed to generate creatives")
		return
	}
	if err != nil {
		h.log.Warn("generation finished under rate limit", "run_id", run.ID, "error", err)
		c.Header("Retry-After", retryAfterSeconds)
	}

	urls := make(map[uuid.UUID]string, len(run.Assets))
	for _, a := range run.Assets {
		urls[a.ID] = h.generation.ViewURL(ctx, a)
	}
	c.JSON(http.StatusOK, runResponse(*run, urls))
}

// ListRuns godoc
// @Summary     List generation runs
// @Description Returns a session's generation runs, newest first, with fresh signed URLs
// @Tags        generate
// @Produce     json
// @Param       session_id path string true "Session ID (UUID)"
// @Success     200 {object} models.RunsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/runs [get]
func (h *GenerateHandler) ListRuns(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return
	}

	runs, urls, err := h.generation.Runs(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "failed to list runs")
		return
	}

	out := make([]models.GenerateResponse, len(runs))
	for i, run := range runs {
		out[i] = runResponse(run, urls)
	}
	c.JSON(http.StatusOK, models.RunsResponse{
		SessionID: sessionID.String(),
		Runs:      out,
	})
}

func runResponse(run models.GenerationRun, urls map[uuid.UUID]string) models.GenerateResponse {
	assets := make([]models.GeneratedAssetResponse, len(run.Assets))
	for i, a := range run.Assets {
		assets[i] = models.GeneratedAssetResponse{
			ID:           a.ID.String(),
			ConceptIndex: a.ConceptIndex,
			VisualPrompt: a.Concept.VisualPrompt,
			Hook:         a.Concept.Hook,
			Placeholder:  a.Placeholder,
			LatencyMS:    a.Latency.Milliseconds(),
			URL:          urls[a.ID],
			CreatedAt:    a.CreatedAt,
		}
	}
	return models.GenerateResponse{
		RunID:          run.ID.String(),
		SessionID:      run.SessionID.String(),
		StyleDirective: run.StyleDirective,
		DegradedStyle:  run.DegradedStyle,
		RateLimited:    run.RateLimited,
		TotalLatencyMS: run.TotalLatency.Milliseconds(),
		Assets:         assets,
		CreatedAt:      run.CreatedAt,
	}
}
