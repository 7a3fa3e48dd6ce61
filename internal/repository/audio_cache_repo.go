package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/museguide/internal/domain"
)

// ErrNoCacheEntry indicates that no audio has been synthesized yet for
// an (artwork, style) pair.
var ErrNoCacheEntry = errors.New("no audio cache entry")

// AudioCacheRepository handles the audio-cache ledger. Entries are
// written once per (artwork, style) pair and never updated or deleted
// by this service.
type AudioCacheRepository struct {
	db *gorm.DB
}

// NewAudioCacheRepository creates a new AudioCacheRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AudioCacheRepository: repository instance bound to db.
func NewAudioCacheRepository(db *gorm.DB) *AudioCacheRepository {
	return &AudioCacheRepository{db: db}
}

// GetURL returns the cached audio URL for an artwork and style.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - artworkID: catalog artwork ID.
//   - style: narration style.
// Returns:
//   - string: public URL of the cached audio.
//   - error: ErrNoCacheEntry when no entry exists, otherwise the lookup error.
func (r *AudioCacheRepository) GetURL(ctx context.Context, artworkID string, style domain.Style) (string, error) {
	var entry domain.AudioCacheEntry
	err := r.db.WithContext(ctx).
		First(&entry, "artwork_id = ? AND style = ?", artworkID, style).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoCacheEntry
		}
		return "", err
	}
	return entry.AudioURL, nil
}

// Save records a newly synthesized audio blob in the ledger.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - artworkID: catalog artwork ID.
//   - style: narration style.
//   - voice: voice ID used for synthesis.
//   - audioURL: public URL of the uploaded audio.
// Returns:
//   - error: non-nil if the insert fails.
func (r *AudioCacheRepository) Save(ctx context.Context, artworkID string, style domain.Style, voice, audioURL string) error {
	entry := domain.AudioCacheEntry{
		ID:        uuid.New().String(),
		ArtworkID: artworkID,
		Style:     style,
		Voice:     voice,
		AudioURL:  audioURL,
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}
