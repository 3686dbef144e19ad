package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string

	// Database
	DatabaseURL string

	// Gemini
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiTextModel  string
	GeminiImageModel string

	// Ad library search
	SearchAPIKey           string
	SearchAPIBaseURL       string
	SearchLimit            int
	SearchCountry          string
	SearchActiveStatus     string
	RankingTopK            int
	RankingForceActive     bool
	MaxConcurrentSynthesis int
	ImageRequestsPerMinute int

	// Storage
	BucketUserAssets         string
	BucketCompetitorAds      string
	BucketGeneratedAds       string
	SignedURLExpirySeconds   int
	DownloadURLExpirySeconds int
	MaxFileSizeMB            int

	// Server
	Port               string
	Environment        string
	LogMode            string
	HTTPTimeoutSeconds int
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),

		SearchAPIKey:           getEnv("SEARCHAPI_KEY", ""),
		SearchAPIBaseURL:       getEnv("SEARCHAPI_BASE_URL", "https://www.searchapi.io"),
		SearchLimit:            getEnvInt("SEARCH_LIMIT", 50),
		SearchCountry:          getEnv("SEARCH_COUNTRY", "all"),
		SearchActiveStatus:     getEnv("SEARCH_ACTIVE_STATUS", "all"),
		RankingTopK:            getEnvInt("RANKING_TOP_K", 5),
		RankingForceActive:     getEnvBool("RANKING_FORCE_ACTIVE", false),
		MaxConcurrentSynthesis: getEnvInt("MAX_CONCURRENT_SYNTHESIS", 5),
		ImageRequestsPerMinute: getEnvInt("IMAGE_REQUESTS_PER_MINUTE", 0),

		BucketUserAssets:         getEnv("BUCKET_USER_ASSETS", "user-assets"),
		BucketCompetitorAds:      getEnv("BUCKET_COMPETITOR_ADS", "competitor-ads"),
		BucketGeneratedAds:       getEnv("BUCKET_GENERATED_ADS", "generated-ads"),
		SignedURLExpirySeconds:   getEnvInt("SIGNED_URL_EXPIRY_SECONDS", 3600),
		DownloadURLExpirySeconds: getEnvInt("DOWNLOAD_URL_EXPIRY_SECONDS", 300),
		MaxFileSizeMB:            getEnvInt("MAX_FILE_SIZE_MB", 10),

		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogMode:            getEnv("LOG_MODE", ""),
		HTTPTimeoutSeconds: getEnvInt("HTTP_TIMEOUT_SECONDS", 180),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
	if cfg.LogMode == "" {
		cfg.LogMode = cfg.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.SearchAPIKey == "" {
		return fmt.Errorf("SEARCHAPI_KEY is required")
	}
	if c.RankingTopK <= 0 {
		return fmt.Errorf("RANKING_TOP_K must be positive, got %d", c.RankingTopK)
	}
	if c.MaxConcurrentSynthesis <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SYNTHESIS must be positive, got %d", c.MaxConcurrentSynthesis)
	}
	if c.ImageRequestsPerMinute < 0 {
		return fmt.Errorf("IMAGE_REQUESTS_PER_MINUTE must not be negative")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	return nil
}

// SearchFiltersActive reports whether the ad library only returns running ads,
// in which case a missing activity flag can be read as active.
func (c *Config) SearchFiltersActive() bool {
	return strings.EqualFold(c.SearchActiveStatus, "active")
}

func (c *Config) SignedURLExpiry() time.Duration {
	return time.Duration(c.SignedURLExpirySeconds) * time.Second
}

func (c *Config) DownloadURLExpiry() time.Duration {
	return time.Duration(c.DownloadURLExpirySeconds) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
