package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/museguide/internal/api/handler"
	"github.com/timmy/museguide/internal/api/middleware"
	"github.com/timmy/museguide/internal/repository"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	recognizer handler.Recognizer,
	narrator handler.Narrator,
	synthesizer handler.Synthesizer,
	artworks *repository.ArtworkRepository,
	mode string,
	cors middleware.CORSConfig,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cors))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	guideHandler := handler.NewGuideHandler(recognizer, narrator, synthesizer)
	artworkHandler := handler.NewArtworkHandler(artworks)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Guide pipeline
		v1.POST("/guide", guideHandler.Guide)

		// Catalog browsing
		v1.GET("/artworks/:id", artworkHandler.GetArtwork)
		v1.GET("/halls", artworkHandler.ListHalls)
	}

	return r
}
