package handlers

import (
	"net/http"

	"adangle-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type FilesHandler struct {
	generation generationService
}

func NewFilesHandler(generation generationService) *FilesHandler {
	return &FilesHandler{
		generation: generation,
	}
}

// Download godoc
// @Summary     Download a generated creative
// @Description Returns a short-lived signed URL that makes the browser save the image
// @Tags        files
// @Produce     json
// @Param       asset_id path string true "Generated asset ID (UUID)"
// @Success     200 {object} models.DownloadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generated/{asset_id}/download [get]
func (h *FilesHandler) Download(c *gin.Context) {
	assetID, ok := parseUUIDParam(c, "asset_id")
	if !ok {
		return
	}

	url, ttl, err := h.generation.DownloadURL(c.Request.Context(), assetID)
	if err != nil {
		respondError(c, err, "failed to create download url")
		return
	}

	c.JSON(http.StatusOK, models.DownloadResponse{
		AssetID:   assetID.String(),
		URL:       url,
		ExpiresIn: int(ttl.Seconds()),
	})
}
