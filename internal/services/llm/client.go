package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Client talks to an OpenAI-compatible server. Chat and embedding calls
// carry independent deadlines; outbound requests share one rate limiter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	config     *common.LLMConfig
	logger     arbor.ILogger
}

// NewClient creates a client for the configured endpoint
func NewClient(config *common.LLMConfig, apiKey string, logger arbor.ILogger) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		config:     config,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse mirrors the OpenAI completion shape. Usage metrics are
// optional; some servers omit completion_tokens entirely.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// chat sends one completion request and returns the raw content string of
// the first choice.
func (c *Client) chat(ctx context.Context, messages []chatMessage, temperature float32, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:       c.config.ChatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	body, err := c.post(ctx, "/v1/chat/completions", reqBody, c.config.ChatTimeoutDuration())
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", common.ErrLLMFormat)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices: %w", common.ErrLLMFormat)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug().
		Int("response_length", len(content)).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion received")
	return content, nil
}

// embed requests vectors for a batch of inputs in one call. Responses are
// reordered by the returned index so callers can rely on positional
// correspondence with the input slice.
func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: c.config.EmbeddingModel,
		Input: texts,
	}

	body, err := c.post(ctx, "/v1/embeddings", reqBody, c.config.EmbedTimeoutDuration())
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", common.ErrLLMFormat)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d items for %d inputs: %w",
			len(resp.Data), len(texts), common.ErrLLMFormat)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range: %w", item.Index, common.ErrLLMFormat)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embedding response item %d is empty: %w", item.Index, common.ErrLLMFormat)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing item %d: %w", i, common.ErrLLMFormat)
		}
	}
	return vectors, nil
}

// post sends one JSON request with its own deadline. Transport failures and
// 5xx statuses map to the retryable unavailable error; 4xx statuses are
// contract failures for this attempt.
func (c *Client) post(ctx context.Context, path string, payload interface{}, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("LLM request failed")
		return nil, fmt.Errorf("llm request failed: %v: %w", err, common.ErrLLMUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v: %w", err, common.ErrLLMUnavailable)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn().Int("status_code", resp.StatusCode).Str("path", path).Msg("LLM server error")
		return nil, fmt.Errorf("llm returned status %d: %w", resp.StatusCode, common.ErrLLMUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("response", string(body[:min(len(body), 200)])).
			Msg("LLM request rejected")
		return nil, fmt.Errorf("llm returned status %d: %w", resp.StatusCode, common.ErrLLMFormat)
	}

	return body, nil
}
