package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ZhipuSpeechConfig holds configuration for the Zhipu speech API client.
type ZhipuSpeechConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ZhipuSpeechClient converts text to WAV audio through the Zhipu
// text-to-speech endpoint.
type ZhipuSpeechClient struct {
	client  *resty.Client
	baseURL string
	model   string
}

// NewZhipuSpeechClient creates a new Zhipu speech API client.
// Parameters:
//   - cfg: API key, base URL and model ID.
// Returns:
//   - *ZhipuSpeechClient: initialized client wrapper.
func NewZhipuSpeechClient(cfg *ZhipuSpeechConfig) *ZhipuSpeechClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://open.bigmodel.cn/api/paas/v4"
	}

	return &ZhipuSpeechClient{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Speak synthesizes text into WAV bytes with the given voice.
// The endpoint signals failure either with an HTTP error status or
// with a JSON body in place of audio; both are treated as errors.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: narration text to voice.
//   - voice: provider voice ID.
// Returns:
//   - []byte: WAV audio bytes.
//   - error: non-nil when synthesis failed.
func (c *ZhipuSpeechClient) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&speechRequest{
			Model:          c.model,
			Input:          text,
			Voice:          voice,
			ResponseFormat: "wav",
		}).
		Post(c.baseURL + "/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("speech API request failed: %w", err)
	}

	body := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if resp.StatusCode() >= 400 || strings.Contains(contentType, "application/json") {
		return nil, fmt.Errorf("speech API error (status %d): %s", resp.StatusCode(), speechErrorMessage(body))
	}

	return body, nil
}

// speechErrorMessage digs a human-readable message out of an error
// body, falling back to a truncated dump of the raw payload.
func speechErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}

	raw := string(body)
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return raw
}
