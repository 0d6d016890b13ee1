package repository

import (
	"context"

	"telegram-insight-agent/internal/domain/model"
)

// UserSettingsRepository stores per-user defaults such as the fallback prompt.
type UserSettingsRepository interface {
	// Get returns domain.ErrNotFound when the user never saved settings.
	Get(ctx context.Context, tx Tx, userID int64) (*model.UserSettings, error)
	SetDefaultPrompt(ctx context.Context, tx Tx, userID int64, prompt string) error
}
