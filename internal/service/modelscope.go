package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ModelScopeConfig holds configuration for the ModelScope API client.
type ModelScopeConfig struct {
	APIKey  string
	BaseURL string
}

// ModelScopeClient talks to the OpenAI-compatible ModelScope inference
// API. One client is constructed per process and shared by the
// recognition, embedding, and narration services.
type ModelScopeClient struct {
	client  *resty.Client
	baseURL string
}

// NewModelScopeClient creates a new ModelScope API client.
// Parameters:
//   - cfg: API key and base URL.
// Returns:
//   - *ModelScopeClient: initialized client wrapper.
func NewModelScopeClient(cfg *ModelScopeConfig) *ModelScopeClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Fixed per-call timeout; there is no cumulative deadline across a
	// request's chain of remote calls
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.modelscope.cn/v1"
	}

	return &ModelScopeClient{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ChatMessage is a single chat message. Content is either a plain
// string or a slice of content parts for multimodal messages.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextContent is a text part of a multimodal message.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ImageContent is an inline image part of a multimodal message.
type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// ImageURL carries an image location, usually a base64 data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest describes one single-turn generation call.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

type chatAPIRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	Temperature    float32       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	EnableThinking bool          `json:"enable_thinking"`
}

type chatAPIResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatCompletion sends a chat completion request and returns the
// response text. Multi-part textual responses are flattened into a
// single newline-joined string.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: generation request.
// Returns:
//   - string: response text.
//   - error: non-nil on transport failure or a non-2xx response.
func (c *ModelScopeClient) ChatCompletion(ctx context.Context, req *ChatRequest) (string, error) {
	apiReq := chatAPIRequest{
		Model:          req.Model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		EnableThinking: false,
	}

	var resp chatAPIResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(apiReq).
		SetResult(&resp).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		return "", fmt.Errorf("failed to call chat API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil && resp.Error.Message != "" {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("chat API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("chat API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat API response (status: %d)", httpResp.StatusCode())
	}

	return flattenContent(resp.Choices[0].Message.Content), nil
}

// flattenContent normalizes a message content field that may be a plain
// string or an array of typed parts.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			if str != "" {
				parts = append(parts, str)
			}
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Text != "" {
			parts = append(parts, obj.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type embeddingAPIRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingAPIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embeddings generates one embedding vector per input text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - model: embedding model ID.
//   - texts: input texts.
//   - dimensions: requested output dimensionality; 0 uses the model default.
// Returns:
//   - [][]float32: one vector per input, in input order.
//   - error: non-nil on transport failure or a non-200 response.
func (c *ModelScopeClient) Embeddings(ctx context.Context, model string, texts []string, dimensions int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingAPIRequest{
		Model:          model,
		Input:          texts,
		EncodingFormat: "float",
		Dimensions:     dimensions,
	}

	var resp embeddingAPIResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.baseURL + "/embeddings")

	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}

	return embeddings, nil
}
