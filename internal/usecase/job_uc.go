package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/logging"
	"telegram-insight-agent/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// CancelReason is stored as the error of a job cancelled from the bot.
const CancelReason = "cancelled by user"

// JobUseCase is the trigger surface of the pipeline: manual runs, the scheduler and status queries.
type JobUseCase interface {
	// Enqueue creates an ENQUEUED job for sub and returns its request id.
	// Returns domain.ErrJobInProgress while another job of sub is not finished.
	Enqueue(ctx context.Context, sub *model.Subscription, manual bool) (string, error)
	// EnqueueWithID is Enqueue with a caller-chosen request id, so the caller can
	// record per-request state before a worker may pick the job up.
	EnqueueWithID(ctx context.Context, requestID string, sub *model.Subscription, manual bool) (string, error)
	// Cancel moves a job of userID to CANCELLED. Finished jobs yield domain.ErrJobFinished.
	Cancel(ctx context.Context, userID int64, requestID string) (*model.Job, error)
	Get(ctx context.Context, requestID string) (*model.Job, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]*model.Job, error)
}

type jobUC struct {
	jobs      repository.JobRepository
	tm        repository.TransactionManager
	publisher adapter.StatusPublisher
	log       *zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, tm repository.TransactionManager, publisher adapter.StatusPublisher, logger *zerolog.Logger) *jobUC {
	return &jobUC{jobs: jobs, tm: tm, publisher: publisher, log: logger}
}

func (u *jobUC) Enqueue(ctx context.Context, sub *model.Subscription, manual bool) (string, error) {
	return u.EnqueueWithID(ctx, "", sub, manual)
}

func (u *jobUC) EnqueueWithID(ctx context.Context, requestID string, sub *model.Subscription, manual bool) (string, error) {
	defer logging.TraceDuration(u.log, "JobUC.Enqueue")()
	if sub == nil || sub.ID == 0 {
		return "", domain.ErrInvalidArgument
	}

	var job *model.Job
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		live, err := u.jobs.HasLiveJob(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if live {
			return domain.ErrJobInProgress
		}
		j, err := model.NewJob(requestID, sub, manual)
		if err != nil {
			return err
		}
		if err := u.jobs.Create(ctx, tx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.IncJobEnqueued(manual)
	logging.With(logging.WithRequestID(ctx, job.RequestID), u.log).Info().
		Int64("user_id", sub.UserID).Int64("chat_id", sub.ChatID).Bool("manual", manual).Msg("job enqueued")
	return job.RequestID, nil
}

func (u *jobUC) Cancel(ctx context.Context, userID int64, requestID string) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Cancel")()

	job, err := u.jobs.FindByRequestID(ctx, nil, requestID)
	if err != nil {
		return nil, err
	}
	// Other users' jobs look missing.
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return job, domain.ErrJobFinished
	}

	fd := &model.FailureDetail{Error: CancelReason, UserID: job.UserID, ChatID: job.ChatID, ChatTitle: job.ChatTitle}
	detail, err := json.Marshal(fd)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.UpdateStatus(ctx, nil, requestID, model.JobStatusCancelled, detail); err != nil {
		if errors.Is(err, domain.ErrJobFinished) {
			// Finished between the read and the write.
			if fresh, ferr := u.jobs.FindByRequestID(ctx, nil, requestID); ferr == nil {
				job = fresh
			}
		}
		return job, err
	}
	job.Status = model.JobStatusCancelled
	job.Detail = detail
	metrics.IncJobFinished(string(model.JobStatusCancelled))

	ev := model.StatusEvent{RequestID: requestID, Status: model.JobStatusCancelled, Failure: fd}
	if err := u.publisher.Publish(ctx, ev); err != nil {
		u.log.Warn().Err(err).Str("request_id", requestID).Msg("failed to publish cancellation")
	}
	u.log.Info().Str("request_id", requestID).Int64("user_id", userID).Msg("job cancelled")
	return job, nil
}

func (u *jobUC) Get(ctx context.Context, requestID string) (*model.Job, error) {
	if requestID == "" {
		return nil, domain.ErrInvalidArgument
	}
	job, err := u.jobs.FindByRequestID(ctx, nil, requestID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", requestID, err)
	}
	return job, nil
}

func (u *jobUC) ListRecent(ctx context.Context, userID int64, limit int) ([]*model.Job, error) {
	return u.jobs.ListRecentByUser(ctx, nil, userID, limit)
}
