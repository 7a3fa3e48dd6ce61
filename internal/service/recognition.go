package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/imageutil"
	"github.com/timmy/museguide/internal/logger"
	"github.com/timmy/museguide/internal/prompts"
	"github.com/timmy/museguide/internal/repository"
)

// chatClient is the slice of ModelScopeClient used for generation calls.
type chatClient interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (string, error)
}

// catalogStore provides full artwork records for vector matches.
type catalogStore interface {
	GetByIDWithHall(ctx context.Context, id string) (*domain.Artwork, error)
}

// vectorIndex finds the nearest catalogued artworks for an embedding.
type vectorIndex interface {
	NearestArtworks(ctx context.Context, vector []float32, threshold float32, limit int) ([]repository.ArtworkMatch, error)
}

// RecognitionConfig holds configuration for the recognition pipeline.
type RecognitionConfig struct {
	VLMModel            string
	SecondaryVLMModel   string
	SimilarityThreshold float32
}

// vlmStrategy is one entry in the ordered fallback chain.
type vlmStrategy struct {
	source domain.RecognitionSource
	model  string
}

// RecognitionService recognizes a photographed artwork. It folds over
// an ordered list of vision-model strategies, then optionally refines
// the winner against the curated catalog via vector similarity.
type RecognitionService struct {
	chat       chatClient
	embedding  EmbeddingProvider
	catalog    catalogStore
	vectors    vectorIndex
	strategies []vlmStrategy
	threshold  float32
}

// NewRecognitionService creates a new recognition pipeline.
// Parameters:
//   - chat: chat completion client for the vision models.
//   - embedding: embedding gateway.
//   - catalog: artwork catalog reader.
//   - vectors: vector similarity index.
//   - cfg: model IDs and similarity threshold.
// Returns:
//   - *RecognitionService: initialized pipeline.
func NewRecognitionService(
	chat chatClient,
	embedding EmbeddingProvider,
	catalog catalogStore,
	vectors vectorIndex,
	cfg *RecognitionConfig,
) *RecognitionService {
	return &RecognitionService{
		chat:      chat,
		embedding: embedding,
		catalog:   catalog,
		vectors:   vectors,
		strategies: []vlmStrategy{
			{source: domain.SourceVLM, model: cfg.VLMModel},
			{source: domain.SourceKimi, model: cfg.SecondaryVLMModel},
		},
		threshold: cfg.SimilarityThreshold,
	}
}

// Recognize identifies the artwork in a photo. It always returns a
// result, never an error: every remote failure is captured as a
// failure variant and unexpected faults are converted at this boundary.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageData: raw uploaded image bytes.
// Returns:
//   - *domain.RecognitionResult: recognition outcome.
func (s *RecognitionService) Recognize(ctx context.Context, imageData []byte) (result *domain.RecognitionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &domain.RecognitionResult{Err: fmt.Sprintf("Recognition failed: %v", r)}
		}
	}()

	jpegData, err := imageutil.Preprocess(imageData, imageutil.DefaultMaxDimension)
	if err != nil {
		return &domain.RecognitionResult{Err: fmt.Sprintf("Recognition failed: %v", err)}
	}

	candidate := s.recognizeWithVLMs(ctx, jpegData)
	if !candidate.Success {
		return candidate
	}

	if refined := s.refineWithCatalog(ctx, candidate.Artwork); refined != nil {
		return refined
	}
	return candidate
}

// recognizeWithVLMs folds over the strategy chain: a sufficient success
// short-circuits, a later success replaces an earlier insufficient one,
// and the last failure wins when nothing succeeds.
func (s *RecognitionService) recognizeWithVLMs(ctx context.Context, jpegData []byte) *domain.RecognitionResult {
	var candidate *domain.RecognitionResult

	for _, strat := range s.strategies {
		artwork, err := s.extract(ctx, strat, jpegData)
		if err != nil {
			logger.CtxWarn(ctx, "Recognition strategy %s failed: %v", strat.source, err)
			if candidate == nil || !candidate.Success {
				candidate = domain.RecognitionFailure(strat.source, err.Error())
			}
			continue
		}

		candidate = &domain.RecognitionResult{
			Success: true,
			Source:  strat.source,
			Artwork: artwork,
		}
		if !isInsufficient(artwork) {
			break
		}
		// Structurally fine but semantically thin; let the next model
		// take a shot. If it fails, this candidate stands as final.
	}

	return candidate
}

// refineWithCatalog looks the candidate up in the curated catalog by
// embedding similarity. Returns nil when the candidate should stand
// (empty embedding text, embedding failure, or no match).
func (s *RecognitionService) refineWithCatalog(ctx context.Context, artwork *domain.Artwork) *domain.RecognitionResult {
	text := BuildEmbeddingText(artwork)
	if text == "" {
		return nil
	}

	vector, err := s.embedding.Embed(ctx, text)
	if err != nil {
		logger.CtxWarn(ctx, "Embedding extraction failed: %v", err)
		return nil
	}

	matches, err := s.vectors.NearestArtworks(ctx, vector, s.threshold, 1)
	if err != nil || len(matches) == 0 {
		if err != nil {
			logger.CtxWarn(ctx, "Vector search failed: %v", err)
		}
		return nil
	}

	match := matches[0]
	full, err := s.catalog.GetByIDWithHall(ctx, match.ArtworkID)
	if err != nil {
		logger.CtxWarn(ctx, "Catalog lookup for vector match %s failed: %v", match.ArtworkID, err)
		return nil
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldArtworkID:  match.ArtworkID,
		logger.FieldSimilarity: match.Similarity,
		logger.FieldSource:     domain.SourceVectorSearch,
	}).Info("Catalog match replaced the model answer")

	similarity := match.Similarity
	return &domain.RecognitionResult{
		Success:    true,
		Source:     domain.SourceVectorSearch,
		Similarity: &similarity,
		Artwork:    full,
	}
}

// vlmExtraction mirrors the JSON record the extraction prompt requests.
type vlmExtraction struct {
	NameCN      string `json:"name_cn"`
	NameEN      string `json:"name_en"`
	Artist      string `json:"artist"`
	Year        string `json:"year"`
	Style       string `json:"style"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

// extract calls one vision model with the fixed extraction instruction
// and parses the structured record out of its response.
func (s *RecognitionService) extract(ctx context.Context, strat vlmStrategy, jpegData []byte) (*domain.Artwork, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)

	req := &ChatRequest{
		Model: strat.model,
		Messages: []ChatMessage{
			{
				Role: "user",
				Content: []interface{}{
					ImageContent{
						Type:     "image_url",
						ImageURL: ImageURL{URL: dataURL},
					},
					TextContent{
						Type: "text",
						Text: prompts.ExtractionPrompt,
					},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   800,
	}

	content, err := s.chat.ChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", strat.source, err)
	}

	extraction, err := parseExtraction(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", strat.source, err)
	}
	if extraction.Error != "" {
		return nil, fmt.Errorf("%s", extraction.Error)
	}

	name := extraction.NameCN
	if name == "" {
		name = "Unknown"
	}
	artist := extraction.Artist
	if artist == "" {
		artist = "Unknown"
	}

	return &domain.Artwork{
		NameCN:            name,
		NameEN:            extraction.NameEN,
		Artist:            artist,
		Year:              extraction.Year,
		Style:             extraction.Style,
		DescriptionCasual: extraction.Description,
	}, nil
}

var codeFenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// parseExtraction recovers the structured record from model output.
// Fenced code blocks are unwrapped first; if a strict parse of the
// remainder fails, the first balanced {...} span is extracted and
// parsed instead. Any remaining failure is a parse failure for the
// calling strategy, feeding the fallback chain.
func parseExtraction(content string) (*vlmExtraction, error) {
	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	if m := codeFenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	var extraction vlmExtraction
	if err := json.Unmarshal([]byte(cleaned), &extraction); err == nil {
		return &extraction, nil
	}

	span, ok := firstJSONObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(span), &extraction); err != nil {
		return nil, fmt.Errorf("invalid JSON object in response: %w", err)
	}
	return &extraction, nil
}

// firstJSONObject returns the first balanced {...} span in s.
func firstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// unknownPlaceholders are tokens the vision models emit in place of
// facts they do not know, compared case-insensitively after trimming.
var unknownPlaceholders = map[string]bool{
	"":        true,
	"unknown": true,
	"未知":      true,
	"不详":      true,
	"none":    true,
	"null":    true,
}

func isUnknown(value string) bool {
	return unknownPlaceholders[strings.ToLower(strings.TrimSpace(value))]
}

// isInsufficient reports whether a recognition is semantically too thin
// to trust: two of the three load-bearing fields (name, creator,
// description) are missing or placeholders.
func isInsufficient(artwork *domain.Artwork) bool {
	nameUnknown := isUnknown(artwork.NameCN)
	artistUnknown := isUnknown(artwork.Artist)

	description := artwork.DescriptionCasual
	if strings.TrimSpace(description) == "" {
		description = artwork.DescriptionProfessional
	}
	descriptionEmpty := strings.TrimSpace(description) == ""

	if nameUnknown && artistUnknown {
		return true
	}
	if nameUnknown && descriptionEmpty {
		return true
	}
	if artistUnknown && descriptionEmpty {
		return true
	}
	return false
}

// BuildEmbeddingText concatenates the present artwork fields in fixed
// order, each prefixed with its label, for similarity lookups. The
// labels match the text the catalog embeddings were generated from.
func BuildEmbeddingText(artwork *domain.Artwork) string {
	var parts []string

	description := artwork.DescriptionCasual
	if description == "" {
		description = artwork.DescriptionProfessional
	}

	if artwork.NameCN != "" {
		parts = append(parts, "名称:"+artwork.NameCN)
	}
	if artwork.NameEN != "" {
		parts = append(parts, "英文名:"+artwork.NameEN)
	}
	if artwork.Artist != "" {
		parts = append(parts, "作者:"+artwork.Artist)
	}
	if artwork.Year != "" {
		parts = append(parts, "年代:"+artwork.Year)
	}
	if artwork.Style != "" {
		parts = append(parts, "风格:"+artwork.Style)
	}
	if description != "" {
		parts = append(parts, "描述:"+description)
	}

	return strings.Join(parts, "\n")
}
