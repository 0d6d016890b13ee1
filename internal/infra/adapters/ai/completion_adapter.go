package ai

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

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Summarizer = (*CompletionAdapter)(nil)

const providerCompletion = "completion"

// CompletionAdapter posts to any OpenAI-compatible chat completions endpoint.
// endpoint is the full URL, e.g. https://api.openai.com/v1/chat/completions.
type CompletionAdapter struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
	log      *zerolog.Logger
}

func NewCompletionAdapter(apiKey, endpoint, model string, timeout time.Duration, logger *zerolog.Logger) (*CompletionAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("llm api key empty")
	}
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	l := logger.With().Str("component", "CompletionAdapter").Logger()
	return &CompletionAdapter{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		client:   newHTTPClient(timeout),
		log:      &l,
	}, nil
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []adapter.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message adapter.Message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *CompletionAdapter) Summarize(ctx context.Context, history, instruction string, maxOutputTokens int) (string, error) {
	start := time.Now()
	input, maxTokens := prepareInput(providerCompletion, history, maxOutputTokens)

	reqBody := completionRequest{
		Model: c.model,
		Messages: []adapter.Message{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		MaxTokens:   maxTokens,
		Temperature: DefaultTemperature,
	}
	text, usage, status, err := c.post(ctx, reqBody)
	if err != nil {
		observe(providerCompletion, c.model, usage, input, "", start, false)
		c.log.Error().Err(err).Int("http_status", status).Msg("summarization request failed")
		return "", &domain.SummarizationError{Provider: providerCompletion, StatusCode: status, Err: err}
	}
	observe(providerCompletion, c.model, usage, input, text, start, true)
	return text, nil
}

func (c *CompletionAdapter) post(ctx context.Context, body completionRequest) (string, adapter.Usage, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", adapter.Usage{}, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", adapter.Usage{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", adapter.Usage{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", adapter.Usage{}, resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", adapter.Usage{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	var u adapter.Usage
	if payload.Usage != nil {
		u = adapter.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		}
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return "", u, resp.StatusCode, errors.New("no choice content")
	}
	return payload.Choices[0].Message.Content, u, resp.StatusCode, nil
}
