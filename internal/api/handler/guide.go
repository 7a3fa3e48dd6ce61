package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/logger"
)

// maxImageSize caps uploaded photos at 10 MB.
const maxImageSize = 10 << 20

// Recognizer identifies the artwork in a photo.
type Recognizer interface {
	Recognize(ctx context.Context, imageData []byte) *domain.RecognitionResult
}

// Narrator produces guide text for an artwork in a style.
type Narrator interface {
	Generate(ctx context.Context, artwork *domain.Artwork, style domain.Style) *domain.NarrationResult
}

// Synthesizer voices narration text.
type Synthesizer interface {
	Synthesize(ctx context.Context, artworkID, text string, style domain.Style) *domain.SynthesisResult
	SynthesizeDirect(ctx context.Context, text string, style domain.Style) []byte
}

// GuideHandler handles the photo-to-narration endpoint.
type GuideHandler struct {
	recognizer  Recognizer
	narrator    Narrator
	synthesizer Synthesizer
}

// NewGuideHandler creates a new guide handler.
// Parameters:
//   - recognizer: recognition pipeline.
//   - narrator: narration generator.
//   - synthesizer: speech service.
// Returns:
//   - *GuideHandler: initialized handler.
func NewGuideHandler(recognizer Recognizer, narrator Narrator, synthesizer Synthesizer) *GuideHandler {
	return &GuideHandler{
		recognizer:  recognizer,
		narrator:    narrator,
		synthesizer: synthesizer,
	}
}

// GuideResponse is the JSON payload for a guide request. Downstream
// failures are reported inside the narration text with a 200 status,
// so a partially successful request still carries everything it got.
type GuideResponse struct {
	ArtworkName string   `json:"artwork_name"`
	ArtistInfo  string   `json:"artist_info"`
	HallInfo    string   `json:"hall_info"`
	Narration   string   `json:"narration"`
	AudioURL    string   `json:"audio_url,omitempty"`
	AudioBase64 string   `json:"audio_base64,omitempty"`
	Source      string   `json:"source,omitempty"`
	Similarity  *float32 `json:"similarity,omitempty"`
}

// Guide handles POST /api/v1/guide. It accepts a multipart form with
// an `image` file and an optional `style` field, and runs the full
// recognize/narrate/synthesize chain.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *GuideHandler) Guide(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Image file is required: " + err.Error(),
		})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Image exceeds the 10MB limit",
		})
		return
	}

	style := domain.Style(c.DefaultPostForm("style", string(domain.StyleProfessional)))
	if !style.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid style %q", style),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to open image: " + err.Error(),
		})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read image: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	recognition := h.recognizer.Recognize(ctx, imageData)
	if !recognition.Success {
		message := recognition.Err
		if message == "" {
			message = "识别失败，请重试"
		}
		c.JSON(http.StatusOK, GuideResponse{Narration: message})
		return
	}

	artwork := recognition.Artwork
	response := GuideResponse{
		ArtworkName: orDefault(artwork.NameCN, "Unknown"),
		ArtistInfo:  formatArtistInfo(artwork),
		HallInfo:    formatHallInfo(artwork, recognition.Source),
		Source:      string(recognition.Source),
		Similarity:  recognition.Similarity,
	}

	narration := h.narrator.Generate(ctx, artwork, style)
	if narration.Success {
		response.Narration = narration.Narration
	} else {
		response.Narration = "讲解生成失败: " + narration.Err
	}

	switch {
	case response.Narration == "":
	case artwork.Catalogued():
		synthesis := h.synthesizer.Synthesize(ctx, artwork.ID, response.Narration, style)
		if synthesis.Success {
			response.AudioURL = synthesis.AudioURL
		} else {
			logger.CtxWarn(ctx, "Speech synthesis failed for %s: %s", artwork.ID, synthesis.Err)
			response.Narration += "\n\n语音生成失败: " + synthesis.Err
		}
	default:
		// Not in the catalog, nothing to key a cache entry on; voice
		// it once and hand the bytes back inline.
		if audio := h.synthesizer.SynthesizeDirect(ctx, response.Narration, style); audio != nil {
			response.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
		}
	}

	c.JSON(http.StatusOK, response)
}

// formatArtistInfo renders "artist / year", dropping the year part
// when it is not known.
func formatArtistInfo(artwork *domain.Artwork) string {
	artist := orDefault(artwork.Artist, "Unknown")
	if artwork.Year != "" {
		return artist + " / " + artwork.Year
	}
	return artist
}

// formatHallInfo renders the hall location for catalogued artworks and
// an explicit placeholder for artworks known only from a model answer.
func formatHallInfo(artwork *domain.Artwork, source domain.RecognitionSource) string {
	if artwork.Hall != nil {
		return fmt.Sprintf("%dF - %s", artwork.Hall.Floor, artwork.Hall.HallName)
	}
	if source == domain.SourceVLM || source == domain.SourceKimi {
		return "展厅信息暂无（识别结果）"
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
