// File: .\internal\infra\adapters\ai\gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
)

var _ adapter.Summarizer = (*GeminiAdapter)(nil)

const providerGemini = "gemini"

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	log          *zerolog.Logger
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
// The instruction is sent as the system instruction and the history as the only user turn.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, timeout time.Duration, logger *zerolog.Logger) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if strings.TrimSpace(defaultModel) == "" || strings.HasPrefix(defaultModel, "gpt-") {
		defaultModel = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(timeout),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "GeminiAdapter").Logger()
	return &GeminiAdapter{client: c, defaultModel: defaultModel, log: &l}, nil
}

func (g *GeminiAdapter) Summarize(ctx context.Context, history, instruction string, maxOutputTokens int) (string, error) {
	start := time.Now()
	input, maxTokens := prepareInput(providerGemini, history, maxOutputTokens)

	temperature := float32(DefaultTemperature)
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.defaultModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: input}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
			Temperature:       &temperature,
			MaxOutputTokens:   int32(maxTokens),
		},
	)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		var apiErrPtr *genai.APIError
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Code
		case errors.As(err, &apiErrPtr):
			status = apiErrPtr.Code
		}
		observe(providerGemini, g.defaultModel, adapter.Usage{}, input, "", start, false)
		g.log.Error().Err(err).Int("http_status", status).Msg("summarization request failed")
		return "", &domain.SummarizationError{Provider: providerGemini, StatusCode: status, Err: err}
	}

	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	text := resp.Text()
	if text == "" {
		observe(providerGemini, g.defaultModel, u, input, "", start, false)
		return "", &domain.SummarizationError{Provider: providerGemini, Err: errors.New("empty candidate")}
	}
	observe(providerGemini, g.defaultModel, u, input, text, start, true)
	return text, nil
}
