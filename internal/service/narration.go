package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/prompts"
)

// NarrationConfig holds configuration for the narration generator.
type NarrationConfig struct {
	Model      string
	PromptsDir string
}

// NarrationService produces spoken-guide text for an artwork in a
// requested style. Curated artworks with a pre-written description for
// the style are served from the catalog without a model call.
type NarrationService struct {
	chat      chatClient
	model     string
	templates map[domain.Style]string
}

// NewNarrationService creates a narration generator. Prompt templates
// are resolved once at construction: a file in cfg.PromptsDir overrides
// the built-in template per style.
// Parameters:
//   - chat: chat completion client.
//   - cfg: model ID and optional prompt template directory.
// Returns:
//   - *NarrationService: initialized generator.
//   - error: non-nil when a template cannot be loaded.
func NewNarrationService(chat chatClient, cfg *NarrationConfig) (*NarrationService, error) {
	templates := make(map[domain.Style]string, len(domain.Styles))
	for _, style := range domain.Styles {
		tmpl, err := prompts.Narration(cfg.PromptsDir, style)
		if err != nil {
			return nil, fmt.Errorf("load %s narration prompt: %w", style, err)
		}
		templates[style] = tmpl
	}

	return &NarrationService{
		chat:      chat,
		model:     cfg.Model,
		templates: templates,
	}, nil
}

// Generate returns narration text for the artwork in the given style.
// It always returns a result, never an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - artwork: recognized or catalogued artwork.
//   - style: narration style.
// Returns:
//   - *domain.NarrationResult: narration outcome with its origin.
func (s *NarrationService) Generate(ctx context.Context, artwork *domain.Artwork, style domain.Style) *domain.NarrationResult {
	if cached := artwork.NarrationFor(style); strings.TrimSpace(cached) != "" {
		return &domain.NarrationResult{
			Success:   true,
			Origin:    domain.OriginCached,
			Narration: cached,
		}
	}

	prompt := s.buildPrompt(artwork, style)

	content, err := s.chat.ChatCompletion(ctx, &ChatRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return &domain.NarrationResult{Err: err.Error()}
	}

	return &domain.NarrationResult{
		Success:   true,
		Origin:    domain.OriginGenerated,
		Narration: strings.TrimSpace(content),
	}
}

// buildPrompt fills the style template with the artwork's fields,
// substituting "Unknown" for anything missing, and appends the model's
// free-form description as supplementary context when present.
func (s *NarrationService) buildPrompt(artwork *domain.Artwork, style domain.Style) string {
	replacer := strings.NewReplacer(
		"{name}", orUnknown(artwork.NameCN),
		"{artist}", orUnknown(artwork.Artist),
		"{year}", orUnknown(artwork.Year),
		"{style}", orUnknown(artwork.Style),
	)
	prompt := replacer.Replace(s.templates[style])

	description := artwork.DescriptionCasual
	if description == "" {
		description = artwork.DescriptionProfessional
	}
	if description != "" {
		prompt += "\n\n补充信息：\n- 简述：" + description
	}

	return prompt
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}
