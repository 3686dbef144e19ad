package services

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/models"
	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type FileInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadInput struct {
	BrandName    string
	Logo         *FileInput
	ProductImage *FileInput
	BrandImages  []FileInput
}

// AssetView is a stored asset with a fresh view URL.
type AssetView struct {
	models.UserAsset
	URL string
}

type UploadResult struct {
	Session *models.Session
	Assets  []AssetView
}

type AssetService struct {
	records      RecordStore
	objects      ObjectStore
	bucket       string
	urls         URLPolicy
	maxFileBytes int64
	log          *logger.Logger
}

func NewAssetService(records RecordStore, objects ObjectStore, bucket string, urls URLPolicy, maxFileBytes int64, log *logger.Logger) *AssetService {
	if log == nil {
		log = logger.Nop()
	}
	return &AssetService{
		records:      records,
		objects:      objects,
		bucket:       bucket,
		urls:         urls,
		maxFileBytes: maxFileBytes,
		log:          log.With("service", "assets"),
	}
}

// Upload validates every file before creating the session, then stores each
// file under <session>/<uuid>.<ext> and records it.
func (s *AssetService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Logo == nil {
		return nil, apperr.Validation("logo is required")
	}
	if in.ProductImage == nil {
		return nil, apperr.Validation("product_image is required")
	}
	if n := len(in.BrandImages); n < models.MinBrandImages || n > models.MaxBrandImages {
		return nil, apperr.Validation("between %d and %d brand images are required, got %d",
			models.MinBrandImages, models.MaxBrandImages, n)
	}

	type pending struct {
		assetType models.AssetType
		file      FileInput
		mimeType  string
	}
	files := []pending{
		{assetType: models.AssetTypeLogo, file: *in.Logo},
		{assetType: models.AssetTypeProductImage, file: *in.ProductImage},
	}
	for _, f := range in.BrandImages {
		files = append(files, pending{assetType: models.AssetTypeBrandImage, file: f})
	}
	for i := range files {
		mimeType, err := s.validateImage(files[i].file, files[i].assetType)
		if err != nil {
			return nil, err
		}
		files[i].mimeType = mimeType
	}

	session, err := s.records.CreateSession(ctx, strings.TrimSpace(in.BrandName))
	if err != nil {
		return nil, err
	}

	views := make([]AssetView, 0, len(files))
	for _, f := range files {
		objectPath := fmt.Sprintf("%s/%s%s", session.ID, uuid.New(), allowedImageTypes[f.mimeType])
		if _, err := s.objects.Put(ctx, s.bucket, objectPath, f.file.Data, f.mimeType); err != nil {
			return nil, err
		}
		asset, err := s.records.CreateUserAsset(ctx, models.UserAsset{
			SessionID:   session.ID,
			AssetType:   f.assetType,
			StoragePath: objectPath,
			Filename:    filename(f.file.Filename, objectPath),
			MimeType:    f.mimeType,
			FileSize:    int64(len(f.file.Data)),
		})
		if err != nil {
			if rmErr := s.objects.Remove(ctx, s.bucket, objectPath); rmErr != nil {
				s.log.Warn("failed to remove orphaned upload", "path", objectPath, "error", rmErr)
			}
			return nil, err
		}
		views = append(views, s.view(ctx, *asset))
	}

	s.log.Info("assets uploaded", "session_id", session.ID, "files", len(views))
	return &UploadResult{Session: session, Assets: views}, nil
}

func (s *AssetService) List(ctx context.Context, sessionID uuid.UUID) ([]AssetView, error) {
	if _, err := s.records.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	assets, err := s.records.ListUserAssets(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, s.view(ctx, a))
	}
	return views, nil
}

func (s *AssetService) view(ctx context.Context, a models.UserAsset) AssetView {
	url, err := s.objects.Sign(ctx, s.bucket, a.StoragePath, s.urls.ViewTTL, false)
	if err != nil {
		s.log.Warn("failed to sign asset url", "asset_id", a.ID, "error", err)
	}
	return AssetView{UserAsset: a, URL: url}
}

func (s *AssetService) validateImage(f FileInput, assetType models.AssetType) (string, error) {
	if len(f.Data) == 0 {
		return "", apperr.Validation("%s %q is empty", assetType, f.Filename)
	}
	if s.maxFileBytes > 0 && int64(len(f.Data)) > s.maxFileBytes {
		return "", apperr.Validation("%s %q exceeds %d bytes", assetType, f.Filename, s.maxFileBytes)
	}
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(f.ContentType, ";", 2)[0]))
	if _, ok := allowedImageTypes[mimeType]; !ok {
		mimeType = http.DetectContentType(f.Data)
	}
	if _, ok := allowedImageTypes[mimeType]; !ok {
		return "", apperr.Validation("%s %q has unsupported type %s", assetType, f.Filename, mimeType)
	}
	return mimeType, nil
}

func filename(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return path.Base(fallback)
	}
	return name
}
