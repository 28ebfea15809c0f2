// Package llmclient talks to OpenRouter's chat-completions endpoint. It
// replaces GoKitt's browser-only fetch client (pkg/memory/openrouter.go,
// syscall/js-gated behind //go:build js && wasm) with a plain net/http
// client, since memoryd runs server-side rather than inside a WASM host.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// openRouterURL is a var, not a const, so tests can point it at a fixture
// server.
var openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Client wraps an HTTP OpenRouter chat-completions call.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	referer    string
	logger     *zap.Logger
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string // e.g. "nvidia/nemotron-3-nano-30b-a3b:free"
	Referer string // sent as HTTP-Referer, mirrors the browser client's origin header
	Logger  *zap.Logger
}

// New builds a Client. Logger defaults to zap.NewNop() when nil.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		referer:    cfg.Referer,
		logger:     logger,
	}
}

// Enabled reports whether the client has the credentials to make requests.
func (c *Client) Enabled() bool {
	return c.apiKey != "" && c.model != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// CompleteJSON sends system+user messages and asks for a JSON object
// response, returning the raw JSON string in the assistant's message. Used
// by the janitor's default summarizer.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("llmclient: no API key or model configured")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		Stream:         false,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	req.Header.Set("X-Title", "memoryd")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("openrouter request failed", zap.Error(err))
		return "", fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llmclient: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llmclient: openrouter error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llmclient: empty response")
	}

	content := parsed.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("llmclient: empty content in response")
	}
	return content, nil
}
