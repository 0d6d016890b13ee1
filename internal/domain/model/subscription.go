package model

import (
	"strings"
	"time"

	"telegram-insight-agent/internal/domain"
)

// Subscription is a user's request to monitor one chat with a summarization prompt.
// At most one subscription exists per (UserID, ChatID) pair.
type Subscription struct {
	ID                     int64
	UserID                 int64 // Telegram id of the owner
	ChatID                 int64 // Telegram id of the monitored chat
	ChatTitle              string
	Prompt                 string // empty means "use the owner's default prompt"
	LastProcessedMessageID *int64
	IsActive               bool
	CreatedAt              time.Time
}

// NewSubscription validates input and returns an active subscription.
func NewSubscription(userID, chatID int64, chatTitle, prompt string) (*Subscription, error) {
	if userID == 0 || chatID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	title := strings.TrimSpace(chatTitle)
	if title == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		UserID:    userID,
		ChatID:    chatID,
		ChatTitle: title,
		Prompt:    strings.TrimSpace(prompt),
		IsActive:  true,
		CreatedAt: time.Now(),
	}, nil
}

// UserSettings holds per-user preferences. DefaultPrompt is the fallback instruction
// for subscriptions that do not define their own.
type UserSettings struct {
	UserID        int64
	DefaultPrompt string
	UpdatedAt     time.Time
}

// FallbackPrompt is used when neither the subscription nor the user defines a prompt.
const FallbackPrompt = "Summarize the key topics, decisions and open questions of this chat history concisely."

// ResolvePrompt picks the subscription prompt first, then the user's default, then FallbackPrompt.
func ResolvePrompt(sub *Subscription, settings *UserSettings) string {
	if sub != nil && strings.TrimSpace(sub.Prompt) != "" {
		return sub.Prompt
	}
	if settings != nil && strings.TrimSpace(settings.DefaultPrompt) != "" {
		return settings.DefaultPrompt
	}
	return FallbackPrompt
}
