package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/museguide/internal/repository"
)

// ArtworkHandler handles catalog browsing endpoints.
type ArtworkHandler struct {
	artworks *repository.ArtworkRepository
}

// NewArtworkHandler creates a new artwork handler.
// Parameters:
//   - artworks: artwork repository instance.
// Returns:
//   - *ArtworkHandler: initialized handler.
func NewArtworkHandler(artworks *repository.ArtworkRepository) *ArtworkHandler {
	return &ArtworkHandler{artworks: artworks}
}

// GetArtwork handles GET /api/v1/artworks/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ArtworkHandler) GetArtwork(c *gin.Context) {
	id := c.Param("id")

	artwork, err := h.artworks.GetByIDWithHall(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Artwork not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load artwork: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, artwork)
}

// ListHalls handles GET /api/v1/halls.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ArtworkHandler) ListHalls(c *gin.Context) {
	halls, err := h.artworks.ListHalls(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list halls: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"halls": halls,
		"total": len(halls),
	})
}
