/**
 * @description
 * This package provides a client for the OpenRouter chat-completions API,
 * used to perform image-generation calls. It builds the multimodal request
 * payload (prompt text plus a source image) and executes the HTTP call.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when the client is constructed without a key.
var ErrMissingAPIKey = errors.New("model api key is not configured")

// DefaultModel is used when the caller does not specify a model variant.
const DefaultModel = "google/gemini-2.5-flash-image-preview"

// Client is a client for the OpenRouter API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new OpenRouter client. baseURL defaults to the public
// endpoint when empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api"
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateRequest describes one image-generation call.
type GenerateRequest struct {
	// Image is a data URI or URL for the source image.
	Image  string
	Prompt string
	Model  string
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Modalities []string      `json:"modalities"`
	Messages   []chatMessage `json:"messages"`
	Stream     bool          `json:"stream"`
}

// chatResponse mirrors the loosely-specified completion payload. The message
// content and image list vary by provider, so both are kept raw and decoded
// by the extractor chain in parse.go.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Images  json.RawMessage `json:"images"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate performs the image-generation call and extracts the generated text
// and image reference from whichever response shape the provider returned.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	imagePart := contentPart{Type: "image_url"}
	imagePart.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: req.Image}

	payload := chatRequest{
		Model:      model,
		Modalities: []string{"image", "text"},
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: req.Prompt},
					imagePart,
				},
			},
		},
		Stream: false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model api error: status %d", resp.StatusCode)
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("model api response decode failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		// An empty choice list is a degraded but successful result.
		return &Result{}, nil
	}

	message := completion.Choices[0].Message
	return ExtractResult(message.Images, message.Content), nil
}
