package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/museguide/internal/api"
	"github.com/timmy/museguide/internal/api/middleware"
	"github.com/timmy/museguide/internal/config"
	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/logger"
	"github.com/timmy/museguide/internal/repository"
	"github.com/timmy/museguide/internal/service"
	"github.com/timmy/museguide/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	artworkRepo := repository.NewArtworkRepository(db)
	audioCacheRepo := repository.NewAudioCacheRepository(db)
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Recognition.EmbeddingDimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Ensure Qdrant collection exists
	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	// Initialize storage (supports R2, S3, S3-compatible)
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Ensure bucket exists
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Initialize services
	modelScopeClient := service.NewModelScopeClient(&service.ModelScopeConfig{
		APIKey:  cfg.ModelScope.APIKey,
		BaseURL: cfg.ModelScope.BaseURL,
	})

	embeddingService := service.NewEmbeddingService(modelScopeClient, &service.EmbeddingConfig{
		Model:      cfg.Recognition.EmbeddingModel,
		Dimensions: cfg.Recognition.EmbeddingDimensions,
	})

	recognitionService := service.NewRecognitionService(
		modelScopeClient,
		embeddingService,
		artworkRepo,
		qdrantRepo,
		&service.RecognitionConfig{
			VLMModel:            cfg.Recognition.VLMModel,
			SecondaryVLMModel:   cfg.Recognition.SecondaryVLMModel,
			SimilarityThreshold: cfg.Recognition.SimilarityThreshold,
		},
	)

	narrationService, err := service.NewNarrationService(modelScopeClient, &service.NarrationConfig{
		Model:      cfg.Narration.Model,
		PromptsDir: cfg.Narration.PromptsDir,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize narration service")
	}

	speechClient := service.NewZhipuSpeechClient(&service.ZhipuSpeechConfig{
		APIKey:  cfg.Zhipu.APIKey,
		BaseURL: cfg.Zhipu.BaseURL,
		Model:   cfg.TTS.Model,
	})

	voices := make(map[domain.Style]string, len(cfg.TTS.Voices))
	for style, voice := range cfg.TTS.Voices {
		voices[domain.Style(style)] = voice
	}
	ttsService := service.NewTTSService(speechClient, audioCacheRepo, objectStorage, &service.TTSConfig{
		Voices: voices,
	})

	// Setup router
	router := api.SetupRouter(
		recognitionService,
		narrationService,
		ttsService,
		artworkRepo,
		cfg.Server.Mode,
		middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
