package repository

import (
	"context"
	"encoding/json"

	"telegram-insight-agent/internal/domain/model"
)

// JobRepository persists pipeline executions. Status writes never leave a terminal status.
type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.Job) error
	FindByRequestID(ctx context.Context, tx Tx, requestID string) (*model.Job, error)
	ListRecentByUser(ctx context.Context, tx Tx, userID int64, limit int) ([]*model.Job, error)
	// ClaimNext atomically picks the oldest ENQUEUED job and marks it STARTED.
	// Returns domain.ErrNotFound when the queue is empty.
	ClaimNext(ctx context.Context) (*model.Job, error)
	// UpdateStatus stores status and detail unless the job is already terminal,
	// in which case domain.ErrJobFinished is returned.
	UpdateStatus(ctx context.Context, tx Tx, requestID string, status model.JobStatus, detail json.RawMessage) error
	// HasLiveJob reports whether the subscription has a job that has not reached a terminal status.
	HasLiveJob(ctx context.Context, tx Tx, subscriptionID int64) (bool, error)
}
