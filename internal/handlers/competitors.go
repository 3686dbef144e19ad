package handlers

import (
	"context"
	"net/http"

	"adangle-backend/internal/models"
	"adangle-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type competitorService interface {
	Analyze(ctx context.Context, in services.AnalyzeInput) (*services.AnalyzeResult, error)
	List(ctx context.Context, sessionID uuid.UUID) ([]services.ReferenceView, error)
}

type CompetitorsHandler struct {
	competitors competitorService
}

func NewCompetitorsHandler(competitors competitorService) *CompetitorsHandler {
	return &CompetitorsHandler{
		competitors: competitors,
	}
}

// Analyze godoc
// @Summary     Analyze competitor ads
// @Description Searches the Meta Ad Library once for a page URL or keyword, ranks the
// @Description results by winner score and stores every new ad for the session.
// @Tags        competitors
// @Accept      json
// @Produce     json
// @Param       request body models.AnalyzeCompetitorsRequest true "Search input"
// @Success     200 {object} models.AnalyzeCompetitorsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /competitors/analyze [post]
func (h *CompetitorsHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeCompetitorsRequest
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

	result, err := h.competitors.Analyze(c.Request.Context(), services.AnalyzeInput{
		SessionID:    sessionID,
		Input:        req.Input,
		Country:      req.Country,
		ActiveStatus: req.ActiveStatus,
		MediaType:    req.MediaType,
	})
	if err != nil {
		respondError(c, err, "failed to analyze competitors")
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeCompetitorsResponse{
		SessionID:     sessionID.String(),
		AdsFound:      result.AdsFound,
		AdsDownloaded: result.AdsDownloaded,
		TopAds:        competitorResponses(result.Top),
	})
}

// ListCompetitors godoc
// @Summary     List stored competitor ads
// @Description Returns every stored competitor ad for a session ordered by winner score
// @Tags        competitors
// @Produce     json
// @Param       session_id path string true "Session ID (UUID)"
// @Success     200 {object} models.CompetitorsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/competitors [get]
func (h *CompetitorsHandler) ListCompetitors(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return
	}

	refs, err := h.competitors.List(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "failed to list competitors")
		return
	}

	c.JSON(http.StatusOK, models.CompetitorsResponse{
		SessionID: sessionID.String(),
		Ads:       competitorResponses(refs),
	})
}

func competitorResponses(refs []services.ReferenceView) []models.CompetitorAdResponse {
	out := make([]models.CompetitorAdResponse, len(refs))
	for i, r := range refs {
		out[i] = models.CompetitorAdResponse{
			ID:          r.ID.String(),
			AdID:        r.AdID,
			PageID:      r.PageID,
			PageName:    r.PageName,
			AdText:      r.Text,
			StartDate:   r.DeliveryStart,
			Active:      r.Active,
			DaysRunning: r.DaysRunning,
			WinnerScore: r.WinnerScore,
			ImageURL:    r.URL,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out
}
