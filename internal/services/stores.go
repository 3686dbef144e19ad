package services

import (
	"context"
	"time"

	"adangle-backend/internal/adlibrary"
	"adangle-backend/internal/models"
	"github.com/google/uuid"
)

// RecordStore is the typed record store. supabase.DatabaseClient implements it.
type RecordStore interface {
	CreateSession(ctx context.Context, brandName string) (*models.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	CreateUserAsset(ctx context.Context, asset models.UserAsset) (*models.UserAsset, error)
	ListUserAssets(ctx context.Context, sessionID uuid.UUID) ([]models.UserAsset, error)
	CreateCompetitorAd(ctx context.Context, ref models.RankedReference) (*models.RankedReference, bool, error)
	ListCompetitorAds(ctx context.Context, sessionID uuid.UUID) ([]models.RankedReference, error)
	CreateGeneratedAsset(ctx context.Context, asset models.RenderedAsset) (*models.RenderedAsset, error)
	GetGeneratedAsset(ctx context.Context, assetID uuid.UUID) (*models.RenderedAsset, error)
	CreateGenerationRun(ctx context.Context, run models.GenerationRun) (*models.GenerationRun, error)
	ListGenerationRuns(ctx context.Context, sessionID uuid.UUID) ([]models.GenerationRun, error)
}

// ObjectStore is implemented by supabase.StorageClient.
type ObjectStore interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, bucket, objectPath string) ([]byte, error)
	Sign(ctx context.Context, bucket, objectPath string, ttl time.Duration, download bool) (string, error)
	Remove(ctx context.Context, bucket string, objectPaths ...string) error
}

type AdSearcher interface {
	Search(ctx context.Context, p adlibrary.SearchParams) ([]models.ReferenceCandidate, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// EventPublisher is implemented by supabase.RealtimeClient.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, sessionID uuid.UUID, event string, payload map[string]interface{}) error
}

type Buckets struct {
	UserAssets    string
	CompetitorAds string
	GeneratedAds  string
}

type URLPolicy struct {
	ViewTTL     time.Duration
	DownloadTTL time.Duration
}
