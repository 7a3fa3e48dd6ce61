package service

import (
	"context"
	"fmt"
)

// EmbeddingProvider turns text into a fixed-dimension vector. Satisfied
// by EmbeddingService; tests substitute fakes.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embeddingsClient is the slice of ModelScopeClient the gateway needs.
type embeddingsClient interface {
	Embeddings(ctx context.Context, model string, texts []string, dimensions int) ([][]float32, error)
}

// EmbeddingConfig holds configuration for the embedding gateway.
type EmbeddingConfig struct {
	Model      string
	Dimensions int
}

// EmbeddingService is a thin gateway binding the remote embedding
// capability to a fixed model and output dimensionality.
type EmbeddingService struct {
	client     embeddingsClient
	model      string
	dimensions int
}

// NewEmbeddingService creates a new embedding gateway.
func NewEmbeddingService(client embeddingsClient, cfg *EmbeddingConfig) *EmbeddingService {
	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GetModel returns the model name being used.
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Dimensions returns the configured output dimensionality.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// Embed generates an embedding for a single text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: input text.
// Returns:
//   - []float32: embedding vector.
//   - error: non-nil if the remote call fails or returns nothing.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.client.Embeddings(ctx, s.model, []string{text}, s.dimensions)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, preserving order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.client.Embeddings(ctx, s.model, texts, s.dimensions)
}
