package usecase

import (
	"context"
	"errors"
	"strings"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ MonitorUseCase = (*monitorUC)(nil)

// MonitorUseCase manages which chats a user monitors and with which prompt.
type MonitorUseCase interface {
	Add(ctx context.Context, userID, chatID int64, title, prompt string) (*model.Subscription, error)
	Get(ctx context.Context, userID, chatID int64) (*model.Subscription, error)
	List(ctx context.Context, userID int64) ([]*model.Subscription, error)
	Remove(ctx context.Context, userID, chatID int64) error
	// UpdatePrompt sets the chat-specific prompt; an empty prompt falls back to the user's default.
	UpdatePrompt(ctx context.Context, userID, chatID int64, prompt string) error
	Pause(ctx context.Context, userID, chatID int64) error
	Resume(ctx context.Context, userID, chatID int64) error
	// DefaultPrompt returns the user's default prompt, or the built-in fallback.
	DefaultPrompt(ctx context.Context, userID int64) (string, error)
	SetDefaultPrompt(ctx context.Context, userID int64, prompt string) error
}

type monitorUC struct {
	subs     repository.SubscriptionRepository
	settings repository.UserSettingsRepository
	log      *zerolog.Logger
}

func NewMonitorUseCase(subs repository.SubscriptionRepository, settings repository.UserSettingsRepository, logger *zerolog.Logger) *monitorUC {
	return &monitorUC{subs: subs, settings: settings, log: logger}
}

func (u *monitorUC) Add(ctx context.Context, userID, chatID int64, title, prompt string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "MonitorUC.Add")()

	sub, err := model.NewSubscription(userID, chatID, title, prompt)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Create(ctx, nil, sub); err != nil {
		return nil, err
	}
	u.log.Info().Int64("user_id", userID).Int64("chat_id", chatID).Msg("chat monitoring added")
	return sub, nil
}

func (u *monitorUC) Get(ctx context.Context, userID, chatID int64) (*model.Subscription, error) {
	sub, err := u.subs.FindByUserAndChat(ctx, nil, userID, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, err
}

func (u *monitorUC) List(ctx context.Context, userID int64) ([]*model.Subscription, error) {
	return u.subs.ListByUser(ctx, nil, userID)
}

func (u *monitorUC) Remove(ctx context.Context, userID, chatID int64) error {
	defer logging.TraceDuration(u.log, "MonitorUC.Remove")()
	if err := u.subs.Delete(ctx, nil, userID, chatID); err != nil {
		return notMonitored(err)
	}
	u.log.Info().Int64("user_id", userID).Int64("chat_id", chatID).Msg("chat monitoring removed")
	return nil
}

func (u *monitorUC) UpdatePrompt(ctx context.Context, userID, chatID int64, prompt string) error {
	return notMonitored(u.subs.UpdatePrompt(ctx, nil, userID, chatID, strings.TrimSpace(prompt)))
}

func (u *monitorUC) Pause(ctx context.Context, userID, chatID int64) error {
	return notMonitored(u.subs.SetActive(ctx, nil, userID, chatID, false))
}

func (u *monitorUC) Resume(ctx context.Context, userID, chatID int64) error {
	return notMonitored(u.subs.SetActive(ctx, nil, userID, chatID, true))
}

func (u *monitorUC) DefaultPrompt(ctx context.Context, userID int64) (string, error) {
	settings, err := u.settings.Get(ctx, nil, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return model.ResolvePrompt(nil, settings), nil
}

func (u *monitorUC) SetDefaultPrompt(ctx context.Context, userID int64, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.ErrInvalidArgument
	}
	return u.settings.SetDefaultPrompt(ctx, nil, userID, prompt)
}

func notMonitored(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrSubscriptionNotFound
	}
	return err
}
