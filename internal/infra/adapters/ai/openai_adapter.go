package ai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
)

var _ adapter.Summarizer = (*OpenAIAdapter)(nil)

const providerOpenAI = "openai"

// OpenAIAdapter summarizes through the official SDK. Retries are disabled so a
// failed call surfaces immediately.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	log    *zerolog.Logger
}

func NewOpenAIAdapter(apiKey, baseURL, model string, timeout time.Duration, logger *zerolog.Logger) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(newHTTPClient(timeout)),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	l := logger.With().Str("component", "OpenAIAdapter").Logger()
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		log:    &l,
	}, nil
}

func (o *OpenAIAdapter) Summarize(ctx context.Context, history, instruction string, maxOutputTokens int) (string, error) {
	start := time.Now()
	input, maxTokens := prepareInput(providerOpenAI, history, maxOutputTokens)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(input),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(DefaultTemperature),
	})
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		observe(providerOpenAI, o.model, adapter.Usage{}, input, "", start, false)
		o.log.Error().Err(err).Int("http_status", status).Msg("summarization request failed")
		return "", &domain.SummarizationError{Provider: providerOpenAI, StatusCode: status, Err: err}
	}

	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		observe(providerOpenAI, o.model, usage, input, "", start, false)
		return "", &domain.SummarizationError{Provider: providerOpenAI, Err: errors.New("no choice content")}
	}
	text := resp.Choices[0].Message.Content
	observe(providerOpenAI, o.model, usage, input, text, start, true)
	return text, nil
}
