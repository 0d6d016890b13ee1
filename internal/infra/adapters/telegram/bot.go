package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/config"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/metrics"
	red "telegram-insight-agent/internal/infra/redis"
	"telegram-insight-agent/internal/usecase"
)

// RateLimiter counts commands per user in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Translator renders user-facing texts.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Bot polls Telegram for commands from the configured owners and routes them to the use cases.
type Bot struct {
	api        BotAPI
	cfg        config.BotConfig
	jobs       usecase.JobUseCase
	monitor    usecase.MonitorUseCase
	indicators repository.StatusIndicatorRepository
	limiter    RateLimiter // optional
	tr         Translator
	log        *zerolog.Logger

	owners        map[int64]struct{}
	updateWorkers int
}

func NewBot(
	api BotAPI,
	cfg config.BotConfig,
	jobs usecase.JobUseCase,
	monitor usecase.MonitorUseCase,
	indicators repository.StatusIndicatorRepository,
	limiter RateLimiter,
	tr Translator,
	logger *zerolog.Logger,
) (*Bot, error) {
	if api == nil {
		return nil, errors.New("bot api is nil")
	}
	if jobs == nil || monitor == nil {
		return nil, errors.New("bot use cases are nil")
	}
	if indicators == nil {
		return nil, errors.New("status indicator store is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	owners := make(map[int64]struct{}, len(cfg.OwnerIDs))
	for _, id := range cfg.OwnerIDs {
		owners[id] = struct{}{}
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &Bot{
		api:           api,
		cfg:           cfg,
		jobs:          jobs,
		monitor:       monitor,
		indicators:    indicators,
		limiter:       limiter,
		tr:            tr,
		log:           &l,
		owners:        owners,
		updateWorkers: workers,
	}, nil
}

// StartPolling processes updates concurrently until ctx is done.
func (b *Bot) StartPolling(ctx context.Context) error {
	if err := b.SetMenuCommands(); err != nil {
		b.log.Warn().Err(err).Msg("failed to set menu commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)
	for i := 0; i < b.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := b.handleUpdate(ctx, up); err != nil {
					b.log.Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update handling failed")
				}
			}
		}(i)
	}

	b.log.Info().Int("workers", b.updateWorkers).Msg("polling for updates")
	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				close(updateChan)
				wg.Wait()
				return errors.New("telegram updates channel closed")
			}
			select {
			case updateChan <- up:
			case <-ctx.Done():
			}
		}
	}
}

// SetMenuCommands publishes the command list shown in Telegram clients.
func (b *Bot) SetMenuCommands() error {
	cmds := []tgbotapi.BotCommand{
		{Command: "run", Description: "Summarize a monitored chat now"},
		{Command: "cancel", Description: "Cancel a running job"},
		{Command: "job", Description: "Show a job's status"},
		{Command: "jobs", Description: "List recent jobs"},
		{Command: "monitor", Description: "Manage monitored chats"},
		{Command: "settings", Description: "Show or set the default prompt"},
		{Command: "help", Description: "Show help"},
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

func (b *Bot) isOwner(userID int64) bool {
	_, ok := b.owners[userID]
	return ok
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	userID := msg.From.ID

	if !b.isOwner(userID) {
		metrics.IncUnauthorized()
		b.log.Warn().Int64("user_id", userID).Str("command", msg.Command()).Msg("command from non-owner")
		return b.reply(msg, b.tr.T("unauthorized"))
	}

	if b.limiter != nil {
		allowed, err := b.limiter.Allow(ctx, red.UserCommandKey(userID), b.cfg.RateLimit, b.cfg.RateWindow)
		if err != nil {
			b.log.Warn().Err(err).Int64("user_id", userID).Msg("rate limiter unavailable")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			return b.reply(msg, b.tr.T("rate_limited"))
		}
	}

	handler, ok := b.commandRoutes()[msg.Command()]
	if !ok {
		metrics.IncTelegramCommand("unknown")
		return b.reply(msg, b.tr.T("unknown_command"))
	}
	metrics.IncTelegramCommand(msg.Command())
	return handler(ctx, msg)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, text))
	return err
}
