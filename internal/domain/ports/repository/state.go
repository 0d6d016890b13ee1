package repository

import (
	"context"
)

// StatusIndicator points at the chat message that shows a manual run's progress.
type StatusIndicator struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	ChatTitle string `json:"chat_title,omitempty"` // title of the monitored chat, for progress texts
}

// StatusIndicatorRepository remembers, per request id, which message to edit on progress events.
// Get returns (nil, nil) when nothing was recorded, e.g. for scheduled runs.
type StatusIndicatorRepository interface {
	Set(ctx context.Context, requestID string, ind *StatusIndicator) error
	Get(ctx context.Context, requestID string) (*StatusIndicator, error)
	Clear(ctx context.Context, requestID string) error
}
