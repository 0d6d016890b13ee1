package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain/ports/adapter"
)

var _ adapter.DeliverySurface = (*NoopDelivery)(nil)

// NoopDelivery logs deliveries instead of sending them, for local runs without a bot token.
type NoopDelivery struct {
	log *zerolog.Logger
}

func NewNoopDelivery(logger *zerolog.Logger) *NoopDelivery {
	l := logger.With().Str("component", "NoopDelivery").Logger()
	return &NoopDelivery{log: &l}
}

func (n *NoopDelivery) SendText(ctx context.Context, recipient int64, text string) error {
	n.log.Info().Int64("to", recipient).Str("text", text).Msg("[noop-telegram] message")
	return ctx.Err()
}

func (n *NoopDelivery) SendFile(ctx context.Context, recipient int64, path, caption string) error {
	n.log.Info().Int64("to", recipient).Str("path", path).Str("caption", caption).Msg("[noop-telegram] file")
	return ctx.Err()
}

func (n *NoopDelivery) EditStatusMessage(ctx context.Context, recipient int64, messageID int, text string) error {
	n.log.Info().Int64("to", recipient).Int("message_id", messageID).Str("text", text).Msg("[noop-telegram] edit")
	return ctx.Err()
}
