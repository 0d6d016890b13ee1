package ai

import (
	"context"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Summarizer = (*limitedSummarizer)(nil)

type limitedSummarizer struct {
	inner adapter.Summarizer
	sem   chan struct{}
}

// NewLimitedSummarizer caps concurrent calls to inner; waiting callers give up when ctx ends.
func NewLimitedSummarizer(inner adapter.Summarizer, maxConcurrent int) adapter.Summarizer {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedSummarizer{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedSummarizer) Summarize(ctx context.Context, history, instruction string, maxOutputTokens int) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", &domain.SummarizationError{Provider: "limiter", Err: ctx.Err()}
	}
	defer func() { <-l.sem }()
	return l.inner.Summarize(ctx, history, instruction, maxOutputTokens)
}
