package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/database"
	"adangle-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientWithDB wraps an existing pool.
func NewDatabaseClientWithDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

func (d *DatabaseClient) CreateSession(ctx context.Context, brandName string) (*models.Session, error) {
	row := d.db.QueryRowContext(ctx, database.InsertSession, uuid.New(), nullString(brandName))
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (d *DatabaseClient) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	session, err := scanSession(d.db.QueryRowContext(ctx, database.SelectSession, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (d *DatabaseClient) CreateUserAsset(ctx context.Context, asset models.UserAsset) (*models.UserAsset, error) {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if err := validateUserAsset(asset); err != nil {
		return nil, err
	}
	row := d.db.QueryRowContext(ctx, database.InsertUserAsset,
		asset.ID, asset.SessionID, string(asset.AssetType), asset.StoragePath,
		asset.Filename, asset.MimeType, asset.FileSize,
	)
	created, err := scanUserAsset(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user asset: %w", err)
	}
	return created, nil
}

func (d *DatabaseClient) ListUserAssets(ctx context.Context, sessionID uuid.UUID) ([]models.UserAsset, error) {
	rows, err := d.db.QueryContext(ctx, database.SelectUserAssets, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user assets: %w", err)
	}
	defer rows.Close()

	var assets []models.UserAsset
	for rows.Next() {
		asset, err := scanUserAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// CreateCompetitorAd inserts a ranked reference unless (session, ad id) is
// already stored. On conflict the stored record is returned unchanged and
// created is false.
func (d *DatabaseClient) CreateCompetitorAd(ctx context.Context, ref models.RankedReference) (*models.RankedReference, bool, error) {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	if err := validateReference(ref); err != nil {
		return nil, false, err
	}

	row := d.db.QueryRowContext(ctx, database.InsertCompetitorAd,
		ref.ID, ref.SessionID, ref.AdID, ref.PageID, nullString(ref.PageName), nullString(ref.Text),
		nullString(ref.DeliveryStart), nullString(ref.DeliveryEnd), nullString(ref.ImageURL),
		ref.Active, ref.DaysRunning, ref.WinnerScore, nullString(ref.StoragePath),
	)
	created, err := scanCompetitorAd(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create competitor ad: %w", err)
	}

	existing, err := d.GetCompetitorAd(ctx, ref.SessionID, ref.AdID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (d *DatabaseClient) GetCompetitorAd(ctx context.Context, sessionID uuid.UUID, adID string) (*models.RankedReference, error) {
	ref, err := scanCompetitorAd(d.db.QueryRowContext(ctx, database.SelectCompetitorAd, sessionID, adID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("competitor ad %s not found", adID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competitor ad: %w", err)
	}
	return ref, nil
}

// ListCompetitorAds returns a session's references by winner score, oldest
// first within a score.
func (d *DatabaseClient) ListCompetitorAds(ctx context.Context, sessionID uuid.UUID) ([]models.RankedReference, error) {
	rows, err := d.db.QueryContext(ctx, database.SelectCompetitorAds, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitor ads: %w", err)
	}
	defer rows.Close()

	var refs []models.RankedReference
	for rows.Next() {
		ref, err := scanCompetitorAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor ad: %w", err)
		}
		refs = append(refs, *ref)
	}
	return refs, rows.Err()
}

func (d *DatabaseClient) CreateGeneratedAsset(ctx context.Context, asset models.RenderedAsset) (*models.RenderedAsset, error) {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if err := validateGeneratedAsset(asset); err != nil {
		return nil, err
	}
	row := d.db.QueryRowContext(ctx, database.InsertGeneratedAsset,
		asset.ID, asset.RunID, asset.SessionID, asset.ConceptIndex, asset.Concept.VisualPrompt,
		asset.Concept.Hook, asset.Placeholder, asset.Latency.Milliseconds(), asset.StoragePath,
	)
	created, err := scanGeneratedAsset(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create generated asset: %w", err)
	}
	return created, nil
}

func (d *DatabaseClient) GetGeneratedAsset(ctx context.Context, assetID uuid.UUID) (*models.RenderedAsset, error) {
	asset, err := scanGeneratedAsset(d.db.QueryRowContext(ctx, database.SelectGeneratedAsset, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("generated asset %s not found", assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generated asset: %w", err)
	}
	return asset, nil
}

// CreateGenerationRun stores the aggregate run record. Assets are written
// separately and are not re-inserted here.
func (d *DatabaseClient) CreateGenerationRun(ctx context.Context, run models.GenerationRun) (*models.GenerationRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.SessionID == uuid.Nil {
		return nil, apperr.Validation("generation run requires a session id")
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run params: %w", err)
	}

	row := d.db.QueryRowContext(ctx, database.InsertGenerationRun,
		run.ID, run.SessionID, params, run.StyleDirective, run.DegradedStyle, run.RateLimited,
		len(run.Assets), run.TotalLatency.Milliseconds(),
	)
	created, _, err := scanGenerationRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation run: %w", err)
	}
	created.Assets = run.Assets
	return created, nil
}

// ListGenerationRuns returns a session's runs newest first, each with its
// assets in concept order.
func (d *DatabaseClient) ListGenerationRuns(ctx context.Context, sessionID uuid.UUID) ([]models.GenerationRun, error) {
	rows, err := d.db.QueryContext(ctx, database.SelectGenerationRuns, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}
	defer rows.Close()

	var runs []models.GenerationRun
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		run, _, err := scanGenerationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation run: %w", err)
		}
		index[run.ID] = len(runs)
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID.String())
	}
	assetRows, err := d.db.QueryContext(ctx, database.SelectRunAssets, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list run assets: %w", err)
	}
	defer assetRows.Close()

	for assetRows.Next() {
		asset, err := scanGeneratedAsset(assetRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generated asset: %w", err)
		}
		if i, ok := index[asset.RunID]; ok {
			runs[i].Assets = append(runs[i].Assets, *asset)
		}
	}
	return runs, assetRows.Err()
}

// Notify publishes payload on a Postgres NOTIFY channel.
func (d *DatabaseClient) Notify(ctx context.Context, channel string, payload []byte) error {
	if _, err := d.db.ExecContext(ctx, database.NotifyChannel, channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", channel, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*models.Session, error) {
	var (
		session models.Session
		brand   sql.NullString
	)
	if err := s.Scan(&session.ID, &brand, &session.CreatedAt); err != nil {
		return nil, err
	}
	session.BrandName = brand.String
	return &session, nil
}

func scanUserAsset(s scanner) (*models.UserAsset, error) {
	var (
		asset     models.UserAsset
		assetType string
	)
	if err := s.Scan(
		&asset.ID, &asset.SessionID, &assetType, &asset.StoragePath,
		&asset.Filename, &asset.MimeType, &asset.FileSize, &asset.CreatedAt,
	); err != nil {
		return nil, err
	}
	asset.AssetType = models.AssetType(assetType)
	if err := validateUserAsset(asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func scanCompetitorAd(s scanner) (*models.RankedReference, error) {
	var (
		ref                                  models.RankedReference
		pageName, text, start, end, imageURL sql.NullString
		storagePath                          sql.NullString
	)
	if err := s.Scan(
		&ref.ID, &ref.SessionID, &ref.AdID, &ref.PageID, &pageName, &text, &start, &end,
		&imageURL, &ref.Active, &ref.DaysRunning, &ref.WinnerScore, &storagePath, &ref.CreatedAt,
	); err != nil {
		return nil, err
	}
	ref.PageName = pageName.String
	ref.Text = text.String
	ref.DeliveryStart = start.String
	ref.DeliveryEnd = end.String
	ref.ImageURL = imageURL.String
	ref.StoragePath = storagePath.String
	active := ref.Active
	ref.IsActive = &active
	ref.Persisted = true
	if err := validateReference(ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func scanGeneratedAsset(s scanner) (*models.RenderedAsset, error) {
	var (
		asset     models.RenderedAsset
		latencyMS int64
	)
	if err := s.Scan(
		&asset.ID, &asset.RunID, &asset.SessionID, &asset.ConceptIndex, &asset.Concept.VisualPrompt,
		&asset.Concept.Hook, &asset.Placeholder, &latencyMS, &asset.StoragePath, &asset.CreatedAt,
	); err != nil {
		return nil, err
	}
	asset.Concept.Index = asset.ConceptIndex
	asset.Latency = time.Duration(latencyMS) * time.Millisecond
	if err := validateGeneratedAsset(asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func scanGenerationRun(s scanner) (*models.GenerationRun, int, error) {
	var (
		run        models.GenerationRun
		params     []byte
		assetCount int
		latencyMS  int64
	)
	if err := s.Scan(
		&run.ID, &run.SessionID, &params, &run.StyleDirective, &run.DegradedStyle,
		&run.RateLimited, &assetCount, &latencyMS, &run.CreatedAt,
	); err != nil {
		return nil, 0, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &run.Params); err != nil {
			return nil, 0, apperr.Validation("generation run %s has malformed params: %v", run.ID, err)
		}
	}
	run.TotalLatency = time.Duration(latencyMS) * time.Millisecond
	return &run, assetCount, nil
}

func validateUserAsset(a models.UserAsset) error {
	switch {
	case a.SessionID == uuid.Nil:
		return apperr.Validation("user asset requires a session id")
	case !a.AssetType.Valid():
		return apperr.Validation("invalid asset type %q", a.AssetType)
	case strings.TrimSpace(a.StoragePath) == "":
		return apperr.Validation("user asset requires a storage path")
	}
	return nil
}

func validateReference(r models.RankedReference) error {
	switch {
	case r.SessionID == uuid.Nil:
		return apperr.Validation("competitor ad requires a session id")
	case strings.TrimSpace(r.AdID) == "":
		return apperr.Validation("competitor ad requires an ad id")
	case strings.TrimSpace(r.PageID) == "":
		return apperr.Validation("competitor ad %s requires a page id", r.AdID)
	case r.WinnerScore < 0 || r.DaysRunning < 0:
		return apperr.Validation("competitor ad %s has a negative score", r.AdID)
	}
	return nil
}

func validateGeneratedAsset(a models.RenderedAsset) error {
	switch {
	case a.SessionID == uuid.Nil || a.RunID == uuid.Nil:
		return apperr.Validation("generated asset requires session and run ids")
	case a.ConceptIndex < 1 || a.ConceptIndex > models.MaxConcepts:
		return apperr.Validation("generated asset has concept index %d", a.ConceptIndex)
	case strings.TrimSpace(a.Concept.Hook) == "" || strings.TrimSpace(a.Concept.VisualPrompt) == "":
		return apperr.Validation("generated asset %d is missing its concept", a.ConceptIndex)
	case strings.TrimSpace(a.StoragePath) == "":
		return apperr.Validation("generated asset %d requires a storage path", a.ConceptIndex)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
