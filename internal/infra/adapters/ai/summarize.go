package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/config"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/infra/metrics"
)

const (
	// MaxInputRunes is how much of the history tail is sent to the model.
	MaxInputRunes      = 8000
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 60 * time.Second
	DefaultTemperature = 0.3
)

// NewSummarizer builds the provider selected by cfg.Provider, bounded by cfg.ConcurrentLimit.
func NewSummarizer(ctx context.Context, cfg config.LLMConfig, logger *zerolog.Logger) (adapter.Summarizer, error) {
	var (
		s   adapter.Summarizer
		err error
	)
	switch cfg.Provider {
	case "", "completion":
		s, err = NewCompletionAdapter(cfg.APIKey, cfg.EndpointURL, cfg.Model, cfg.Timeout, logger)
	case "openai":
		s, err = NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, logger)
	case "gemini":
		s, err = NewGeminiAdapter(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLimitedSummarizer(s, cfg.ConcurrentLimit), nil
}

// tailRunes keeps the last n runes of s and reports whether anything was cut.
func tailRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	r := []rune(s)
	return string(r[len(r)-n:]), true
}

// prepareInput applies the input window and output default shared by all providers.
func prepareInput(provider, history string, maxOutputTokens int) (string, int) {
	in, cut := tailRunes(history, MaxInputRunes)
	if cut {
		metrics.IncInputTruncated(provider)
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxTokens
	}
	return in, maxOutputTokens
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func observe(provider, model string, u adapter.Usage, input, output string, start time.Time, ok bool) {
	if u.TotalTokens == 0 && ok {
		u = estimateUsage(model, input, output)
	}
	metrics.ObserveSummaryUsage(provider, model, u.PromptTokens, u.CompletionTokens, u.TotalTokens,
		int(time.Since(start).Milliseconds()), ok)
}
