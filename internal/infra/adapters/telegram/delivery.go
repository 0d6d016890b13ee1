package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain/ports/adapter"
)

var _ adapter.DeliverySurface = (*Delivery)(nil)

// Delivery sends job results and progress edits through the Bot API.
type Delivery struct {
	api BotAPI
	log *zerolog.Logger
}

func NewDelivery(api BotAPI, logger *zerolog.Logger) *Delivery {
	l := logger.With().Str("component", "TelegramDelivery").Logger()
	return &Delivery{api: api, log: &l}
}

func (d *Delivery) SendText(ctx context.Context, recipient int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.api.Send(tgbotapi.NewMessage(recipient, text))
	return err
}

func (d *Delivery) SendFile(ctx context.Context, recipient int64, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(recipient, tgbotapi.FilePath(path))
	doc.Caption = caption
	_, err := d.api.Send(doc)
	return err
}

// EditStatusMessage replaces the text of a previously sent message.
// Editing to identical text is not an error.
func (d *Delivery) EditStatusMessage(ctx context.Context, recipient int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.api.Request(tgbotapi.NewEditMessageText(recipient, messageID, text))
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		d.log.Debug().Int64("chat_id", recipient).Int("message_id", messageID).Msg("status message unchanged")
		return nil
	}
	return err
}
