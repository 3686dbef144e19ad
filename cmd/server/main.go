// @title           AdAngle Backend API
// @version         1.0.0
// @description     Backend API for generating ad creatives. It ingests brand assets, ranks competitor ads from the Meta Ad Library, extracts a visual style and renders composited creatives with Gemini. Run progress is published on Postgres notification channels.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"adangle-backend/internal/adlibrary"
	"adangle-backend/internal/compositor"
	"adangle-backend/internal/concepts"
	"adangle-backend/internal/config"
	"adangle-backend/internal/database"
	"adangle-backend/internal/handlers"
	"adangle-backend/internal/httpclient"
	"adangle-backend/internal/imagen"
	"adangle-backend/internal/llm"
	"adangle-backend/internal/logger"
	"adangle-backend/internal/middleware"
	"adangle-backend/internal/ranking"
	"adangle-backend/internal/services"
	"adangle-backend/internal/style"
	"adangle-backend/internal/supabase"
	"adangle-backend/internal/synth"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and migrations
	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("failed to connect to database", "error", err)
	}
	defer dbClient.Close()

	if err := database.NewMigratorWithDB(dbClient.DB(), appLog).Run(); err != nil {
		appLog.Fatal("migration failed", "error", err)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		appLog.Fatal("failed to initialize supabase client", "error", err)
	}
	storageClient := supabaseClient.Storage()
	realtimeClient := supabase.NewRealtimeClient(dbClient)

	// Outbound providers
	httpClient := httpclient.New(httpclient.Options{PreferIPv4: true, Timeout: cfg.HTTPTimeout()})

	textClient, err := llm.New(ctx, llm.Options{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiTextModel,
		Logger: appLog,
	})
	if err != nil {
		appLog.Fatal("failed to initialize gemini text client", "error", err)
	}
	defer textClient.Close()

	imageClient := imagen.NewClient(imagen.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		Model:             cfg.GeminiImageModel,
		HTTPClient:        httpClient,
		RequestsPerMinute: cfg.ImageRequestsPerMinute,
		Logger:            appLog,
	})

	adSearch := adlibrary.New(adlibrary.Options{
		APIKey:     cfg.SearchAPIKey,
		BaseURL:    cfg.SearchAPIBaseURL,
		HTTPClient: httpClient,
		Logger:     appLog,
	})

	// Pipeline components
	comp, err := compositor.New(compositor.DefaultOptions(), appLog)
	if err != nil {
		appLog.Fatal("failed to initialize compositor", "error", err)
	}

	buckets := services.Buckets{
		UserAssets:    cfg.BucketUserAssets,
		CompetitorAds: cfg.BucketCompetitorAds,
		GeneratedAds:  cfg.BucketGeneratedAds,
	}
	urls := services.URLPolicy{
		ViewTTL:     cfg.SignedURLExpiry(),
		DownloadTTL: cfg.DownloadURLExpiry(),
	}

	assetService := services.NewAssetService(dbClient, storageClient, buckets.UserAssets, urls, cfg.MaxFileSizeBytes(), appLog)
	competitorService := services.NewCompetitorService(
		dbClient,
		storageClient,
		adSearch,
		ranking.NewEngine(ranking.Options{TopK: cfg.RankingTopK, ForceActive: cfg.RankingForceActive}),
		buckets.CompetitorAds,
		urls,
		services.SearchDefaults{
			Country:      cfg.SearchCountry,
			ActiveStatus: cfg.SearchActiveStatus,
			Limit:        cfg.SearchLimit,
		},
		appLog,
	)
	generationService := services.NewGenerationService(services.GenerationDeps{
		Records:     dbClient,
		Objects:     storageClient,
		Extractor:   style.NewExtractor(textClient, appLog),
		Generator:   concepts.NewGenerator(textClient, appLog),
		Synthesizer: synth.New(imageClient, appLog),
		Compositor:  comp,
		Events:      realtimeClient,
		Buckets:     buckets,
		URLs:        urls,
		Concurrency: cfg.MaxConcurrentSynthesis,
		Logger:      appLog,
	})

	// Handlers
	healthHandler := handlers.NewHealthHandler(dbClient)
	uploadHandler := handlers.NewUploadHandler(assetService)
	competitorsHandler := handlers.NewCompetitorsHandler(competitorService)
	generateHandler := handlers.NewGenerateHandler(generationService, appLog)
	filesHandler := handlers.NewFilesHandler(generationService)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(appLog))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	router.GET("/health", healthHandler.Health)

	api := router.Group("/api/v1")

	// Assets
	api.POST("/assets/upload", uploadHandler.Upload)
	api.GET("/sessions/:session_id/assets", uploadHandler.ListAssets)

	// Competitors
	api.POST("/competitors/analyze", competitorsHandler.Analyze)
	api.GET("/sessions/:session_id/competitors", competitorsHandler.ListCompetitors)

	// Generation and files
	api.POST("/generate", generateHandler.Generate)
	api.GET("/sessions/:session_id/runs", generateHandler.ListRuns)
	api.GET("/generated/:asset_id/download", filesHandler.Download)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", "error", err)
	}
}
