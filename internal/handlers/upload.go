package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"adangle-backend/internal/models"
	"adangle-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxMultipartMemory = 32 << 20

type assetService interface {
	Upload(ctx context.Context, in services.UploadInput) (*services.UploadResult, error)
	List(ctx context.Context, sessionID uuid.UUID) ([]services.AssetView, error)
}

type UploadHandler struct {
	assets assetService
}

func NewUploadHandler(assets assetService) *UploadHandler {
	return &UploadHandler{
		assets: assets,
	}
}

// Upload godoc
// @Summary     Upload brand assets
// @Description Creates a session from a logo, a product image and 3 to 5 brand images.
// @Description Files must be JPEG, PNG, GIF or WebP and within the configured size limit.
// @Tags        assets
// @Accept      multipart/form-data
// @Produce     json
// @Param       brand_name    formData string false "Brand name"
// @Param       logo          formData file   true  "Brand logo"
// @Param       product_image formData file   true  "Product photo"
// @Param       brand_image   formData file   true  "Brand images (3-5 files)"
// @Success     201 {object} models.UploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /assets/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}
	form := c.Request.MultipartForm

	in := services.UploadInput{BrandName: c.PostForm("brand_name")}
	var err error
	if in.Logo, err = singleFile(form, "logo"); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read logo", Message: err.Error()})
		return
	}
	if in.ProductImage, err = singleFile(form, "product_image"); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read product_image", Message: err.Error()})
		return
	}
	for _, fh := range form.File["brand_image"] {
		f, err := readFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read brand_image", Message: err.Error()})
			return
		}
		in.BrandImages = append(in.BrandImages, *f)
	}

	result, err := h.assets.Upload(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "failed to upload assets")
		return
	}

	c.JSON(http.StatusCreated, models.UploadResponse{
		SessionID: result.Session.ID.String(),
		Assets:    assetResponses(result.Assets),
	})
}

// ListAssets godoc
// @Summary     List session assets
// @Description Returns every uploaded asset for a session with fresh signed URLs
// @Tags        assets
// @Produce     json
// @Param       session_id path string true "Session ID (UUID)"
// @Success     200 {object} models.AssetsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/assets [get]
func (h *UploadHandler) ListAssets(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return
	}

	views, err := h.assets.List(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "failed to list assets")
		return
	}

	c.JSON(http.StatusOK, models.AssetsResponse{
		SessionID: sessionID.String(),
		Assets:    assetResponses(views),
	})
}

func singleFile(form *multipart.Form, field string) (*services.FileInput, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	return readFile(files[0])
}

func readFile(fh *multipart.FileHeader) (*services.FileInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return &services.FileInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func assetResponses(views []services.AssetView) []models.AssetResponse {
	out := make([]models.AssetResponse, len(views))
	for i, v := range views {
		out[i] = models.AssetResponse{
			ID:        v.ID.String(),
			AssetType: v.AssetType,
			Filename:  v.Filename,
			MimeType:  v.MimeType,
			FileSize:  v.FileSize,
			URL:       v.URL,
			CreatedAt: v.CreatedAt,
		}
	}
	return out
}
