package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/museguide/internal/domain"
)

// ArtworkRepository handles artwork catalog reads and embedding writes.
// The catalog itself is curated externally; this service never creates
// or deletes artwork rows.
type ArtworkRepository struct {
	db *gorm.DB
}

// NewArtworkRepository creates a new ArtworkRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ArtworkRepository: repository instance bound to db.
func NewArtworkRepository(db *gorm.DB) *ArtworkRepository {
	return &ArtworkRepository{db: db}
}

// GetByIDWithHall retrieves an artwork by ID with its hall preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: artwork ID.
// Returns:
//   - *domain.Artwork: artwork record with hall if found.
//   - error: non-nil if lookup fails.
func (r *ArtworkRepository) GetByIDWithHall(ctx context.Context, id string) (*domain.Artwork, error) {
	var artwork domain.Artwork
	if err := r.db.WithContext(ctx).Preload("Hall").First(&artwork, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &artwork, nil
}

// List retrieves catalog artworks with pagination, ordered by creation
// time so backfill passes are deterministic.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Artwork: matching artwork records.
//   - error: non-nil if the query fails.
func (r *ArtworkRepository) List(ctx context.Context, limit, offset int) ([]domain.Artwork, error) {
	var artworks []domain.Artwork
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&artworks).Error; err != nil {
		return nil, err
	}
	return artworks, nil
}

// Count returns the total number of catalog artworks.
func (r *ArtworkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Artwork{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateEmbedding stores the embedding vector on an artwork row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: artwork ID.
//   - embedding: embedding vector to persist.
// Returns:
//   - error: non-nil if the update fails.
func (r *ArtworkRepository) UpdateEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Artwork{}).
		Where("id = ?", id).
		Update("embedding", embedding)
	if result.Error != nil {
		return fmt.Errorf("failed to update embedding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListHalls retrieves all halls ordered by floor.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Hall: hall records.
//   - error: non-nil if the query fails.
func (r *ArtworkRepository) ListHalls(ctx context.Context) ([]domain.Hall, error) {
	var halls []domain.Hall
	if err := r.db.WithContext(ctx).Order("floor ASC").Find(&halls).Error; err != nil {
		return nil, err
	}
	return halls, nil
}
