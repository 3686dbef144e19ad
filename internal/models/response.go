package models

import "time"

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type AssetResponse struct {
	ID        string    `json:"id"`
	AssetType AssetType `json:"asset_type"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadResponse struct {
	SessionID string          `json:"session_id"`
	Assets    []AssetResponse `json:"assets"`
}

type AssetsResponse struct {
	SessionID string          `json:"session_id"`
	Assets    []AssetResponse `json:"assets"`
}

type CompetitorAdResponse struct {
	ID          string    `json:"id"`
	AdID        string    `json:"ad_id"`
	PageID      string    `json:"page_id"`
	PageName    string    `json:"page_name,omitempty"`
	AdText      string    `json:"ad_text,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	Active      bool      `json:"active"`
	DaysRunning int       `json:"days_running"`
	WinnerScore float64   `json:"winner_score"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AnalyzeCompetitorsResponse struct {
	SessionID     string                 `json:"session_id"`
	AdsFound      int                    `json:"ads_found"`
	AdsDownloaded int                    `json:"ads_downloaded"`
	TopAds        []CompetitorAdResponse `json:"top_ads"`
}

type CompetitorsResponse struct {
	SessionID string                 `json:"session_id"`
	Ads       []CompetitorAdResponse `json:"ads"`
}

type GeneratedAssetResponse struct {
	ID           string    `json:"id"`
	ConceptIndex int       `json:"concept_number"`
	VisualPrompt string    `json:"visual_prompt"`
	Hook         string    `json:"hook"`
	Placeholder  bool      `json:"placeholder"`
	LatencyMS    int64     `json:"latency_ms"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type GenerateResponse struct {
	RunID          string                   `json:"run_id"`
	SessionID      string                   `json:"session_id"`
	StyleDirective string                   `json:"style_directive"`
	DegradedStyle  bool                     `json:"degraded_style"`
	RateLimited    bool                     `json:"rate_limited"`
	TotalLatencyMS int64                    `json:"total_latency_ms"`
	Assets         []GeneratedAssetResponse `json:"assets"`
	CreatedAt      time.Time                `json:"created_at"`
}

type RunsResponse struct {
	SessionID string             `json:"session_id"`
	Runs      []GenerateResponse `json:"runs"`
}

type DownloadResponse struct {
	AssetID   string `json:"asset_id"`
	URL       string `json:"download_url"`
	ExpiresIn int    `json:"expires_in"`
}
