package adapter

import (
	"context"

	"telegram-insight-agent/internal/domain/model"
)

// StatusPublisher broadcasts job transitions. Delivery is best effort (at-most-once, no replay).
type StatusPublisher interface {
	Publish(ctx context.Context, ev model.StatusEvent) error
}

// StatusSubscriber yields every job's events until ctx is done; the channel is closed afterwards.
type StatusSubscriber interface {
	Subscribe(ctx context.Context) (<-chan model.StatusEvent, error)
}
