package repository

import (
	"context"

	"telegram-insight-agent/internal/domain/model"
)

// SubscriptionRepository is the port for monitoring subscriptions.
type SubscriptionRepository interface {
	// Create inserts sub and fills its ID. Returns domain.ErrAlreadyExists for a duplicate (user, chat) pair.
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Subscription, error)
	FindByUserAndChat(ctx context.Context, tx Tx, userID, chatID int64) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.Subscription, error)
	// ListActiveUserIDs returns the distinct owners with at least one active subscription.
	ListActiveUserIDs(ctx context.Context, tx Tx) ([]int64, error)
	UpdatePrompt(ctx context.Context, tx Tx, userID, chatID int64, prompt string) error
	SetActive(ctx context.Context, tx Tx, userID, chatID int64, active bool) error
	SetWatermark(ctx context.Context, tx Tx, id int64, lastMessageID int64) error
	Delete(ctx context.Context, tx Tx, userID, chatID int64) error
}
