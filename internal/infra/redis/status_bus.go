package redis

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/infra/metrics"
)

// ChannelPrefix namespaces one channel per request: request_status:<request_id>.
const ChannelPrefix = "request_status:"

var (
	_ adapter.StatusPublisher  = (*StatusBus)(nil)
	_ adapter.StatusSubscriber = (*StatusBus)(nil)
)

// StatusBus carries job transitions over Redis pub/sub. There is no buffering or replay:
// an event published while nobody listens is lost.
type StatusBus struct {
	ps  PubSub
	log *zerolog.Logger
}

func NewStatusBus(ps PubSub, logger *zerolog.Logger) *StatusBus {
	l := logger.With().Str("component", "StatusBus").Logger()
	return &StatusBus{ps: ps, log: &l}
}

func Channel(requestID string) string { return ChannelPrefix + requestID }

func (b *StatusBus) Publish(ctx context.Context, ev model.StatusEvent) error {
	payload, err := model.EncodeStatusEvent(ev)
	if err != nil {
		metrics.IncStatusPublished(string(ev.Status), "invalid")
		return err
	}
	if err := b.ps.Publish(ctx, Channel(ev.RequestID), payload); err != nil {
		metrics.IncStatusPublished(string(ev.Status), "error")
		return err
	}
	metrics.IncStatusPublished(string(ev.Status), "ok")
	return nil
}

// Subscribe listens on request_status:* until ctx is done. Payloads that fail to
// decode are logged and dropped.
func (b *StatusBus) Subscribe(ctx context.Context) (<-chan model.StatusEvent, error) {
	msgs, closeFn, err := b.ps.PSubscribe(ctx, ChannelPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make(chan model.StatusEvent, 64)
	go func() {
		defer close(out)
		defer func() { _ = closeFn() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				requestID := strings.TrimPrefix(m.Channel, ChannelPrefix)
				ev, err := model.DecodeStatusEvent(requestID, []byte(m.Payload))
				if err != nil {
					metrics.IncStatusHandled("unknown", "skipped")
					b.log.Warn().Err(err).Str("channel", m.Channel).Msg("dropping malformed status event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
