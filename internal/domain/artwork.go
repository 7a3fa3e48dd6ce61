package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Style is the narration tone requested by the visitor.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
)

// Styles lists every supported narration style. Configuration maps
// (style -> voice, style -> prompt) must cover all of them.
var Styles = []Style{StyleProfessional, StyleCasual}

// Valid reports whether s is a known narration style.
func (s Style) Valid() bool {
	for _, known := range Styles {
		if s == known {
			return true
		}
	}
	return false
}

// Vector is a fixed-dimension embedding stored as JSON in the database.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector, nil when empty.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// Hall represents an exhibition hall. Halls are curated externally;
// this service only reads them alongside artwork lookups.
type Hall struct {
	ID          string `gorm:"type:text;primaryKey" json:"id"`
	HallName    string `gorm:"type:text;not null" json:"hall_name"`
	Floor       int    `json:"floor"`
	Description string `gorm:"type:text" json:"description"`
}

// TableName returns the database table name for Hall.
func (Hall) TableName() string {
	return "halls"
}

// Artwork represents a catalogued artwork, or a fresh recognition result
// that has not been catalogued yet. An uncatalogued artwork has an empty
// ID; such artworks can never hold cached audio, because cache entries
// are keyed by catalog identity.
type Artwork struct {
	ID                      string    `gorm:"type:text;primaryKey" json:"id"`
	NameCN                  string    `gorm:"type:text;not null;index:idx_artworks_name" json:"name_cn"`
	NameEN                  string    `gorm:"type:text" json:"name_en"`
	Artist                  string    `gorm:"type:text" json:"artist"`
	Year                    string    `gorm:"type:text" json:"year"`
	Style                   string    `gorm:"type:text" json:"style"`
	ImageURL                string    `gorm:"type:text" json:"image_url,omitempty"`
	DescriptionProfessional string    `gorm:"type:text" json:"description_professional,omitempty"`
	DescriptionCasual       string    `gorm:"type:text" json:"description_casual,omitempty"`
	Embedding               Vector    `gorm:"type:text" json:"-"`
	HallID                  *string   `gorm:"type:text;index:idx_artworks_hall" json:"hall_id,omitempty"`
	Hall                    *Hall     `gorm:"foreignKey:HallID" json:"hall,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName returns the database table name for Artwork.
func (Artwork) TableName() string {
	return "artworks"
}

// Catalogued reports whether the artwork carries a catalog identity.
func (a *Artwork) Catalogued() bool {
	return a != nil && a.ID != ""
}

// NarrationFor returns the pre-authored narration for the given style,
// empty if none exists.
func (a *Artwork) NarrationFor(style Style) string {
	switch style {
	case StyleProfessional:
		return a.DescriptionProfessional
	case StyleCasual:
		return a.DescriptionCasual
	default:
		return ""
	}
}

// AudioCacheEntry links an (artwork, style) pair to previously
// synthesized audio. Entries are written once on first synthesis and
// read on every later request; this core never updates or deletes them.
type AudioCacheEntry struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	ArtworkID string    `gorm:"type:text;not null;index:idx_audio_cache_key,unique" json:"artwork_id"`
	Style     Style     `gorm:"type:text;not null;index:idx_audio_cache_key,unique" json:"style"`
	Voice     string    `gorm:"type:text;not null" json:"voice"`
	AudioURL  string    `gorm:"type:text;not null" json:"audio_url"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for AudioCacheEntry.
func (AudioCacheEntry) TableName() string {
	return "audio_cache"
}
