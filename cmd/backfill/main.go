// Command backfill computes and stores embeddings for catalog artworks
// so the recognition pipeline can match photos against them. It skips
// rows that already carry an embedding unless -force is given.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/timmy/museguide/internal/config"
	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/logger"
	"github.com/timmy/museguide/internal/repository"
	"github.com/timmy/museguide/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to the standard search path)")
	force := flag.Bool("force", false, "re-embed artworks that already have an embedding")
	batchSize := flag.Int("batch", 50, "number of artworks to load and embed per batch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.ModelScope.APIKey == "" {
		log.Fatal("MODELSCOPE_API_KEY is required")
	}

	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	artworkRepo := repository.NewArtworkRepository(db)

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

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	modelScopeClient := service.NewModelScopeClient(&service.ModelScopeConfig{
		APIKey:  cfg.ModelScope.APIKey,
		BaseURL: cfg.ModelScope.BaseURL,
	})
	embeddingService := service.NewEmbeddingService(modelScopeClient, &service.EmbeddingConfig{
		Model:      cfg.Recognition.EmbeddingModel,
		Dimensions: cfg.Recognition.EmbeddingDimensions,
	})

	total, err := artworkRepo.Count(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to count artworks")
	}
	appLogger.WithField("total", total).Info("Starting embedding backfill")

	var processed, skipped, failed int
	for offset := 0; ; offset += *batchSize {
		artworks, err := artworkRepo.List(ctx, *batchSize, offset)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to list artworks")
		}
		if len(artworks) == 0 {
			break
		}

		// Collect the batch's pending rows so one embeddings call
		// covers them all.
		var pending []domain.Artwork
		var texts []string
		for _, artwork := range artworks {
			if len(artwork.Embedding) > 0 && !*force {
				skipped++
				continue
			}
			text := service.BuildEmbeddingText(&artwork)
			if text == "" {
				appLogger.WithField(logger.FieldArtworkID, artwork.ID).Warn("Artwork has no embeddable fields, skipping")
				skipped++
				continue
			}
			pending = append(pending, artwork)
			texts = append(texts, text)
		}
		if len(pending) == 0 {
			continue
		}

		vectors, err := embeddingService.EmbedBatch(ctx, texts)
		if err != nil {
			appLogger.WithError(err).Error("Embedding batch failed")
			failed += len(pending)
			continue
		}

		for i, artwork := range pending {
			vector := vectors[i]
			if err := artworkRepo.UpdateEmbedding(ctx, artwork.ID, domain.Vector(vector)); err != nil {
				appLogger.WithError(err).WithField(logger.FieldArtworkID, artwork.ID).Error("Failed to store embedding")
				failed++
				continue
			}
			err := qdrantRepo.UpsertArtwork(ctx, artwork.ID, vector, &repository.ArtworkPayload{
				ArtworkID: artwork.ID,
				NameCN:    artwork.NameCN,
				Artist:    artwork.Artist,
			})
			if err != nil {
				appLogger.WithError(err).WithField(logger.FieldArtworkID, artwork.ID).Error("Failed to upsert vector")
				failed++
				continue
			}
			processed++
		}
	}

	appLogger.WithFields(logger.Fields{
		"processed": processed,
		"skipped":   skipped,
		"failed":    failed,
	}).Info("Embedding backfill finished")
}
