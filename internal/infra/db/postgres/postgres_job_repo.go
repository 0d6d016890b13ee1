package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{
		pool: pool,
		tm:   tm,
	}
}

const jobColumns = `request_id, subscription_id, user_id, chat_id, chat_title, status, detail, is_manual, created_at, updated_at`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	const q = `
INSERT INTO job_status (request_id, subscription_id, user_id, chat_id, chat_title, status, detail, is_manual, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.RequestID, job.SubscriptionID, job.UserID, job.ChatID, job.ChatTitle,
		string(job.Status), jsonArg(job.Detail), job.IsManual, job.CreatedAt, job.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *jobRepo) FindByRequestID(ctx context.Context, tx repository.Tx, requestID string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM job_status WHERE request_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, requestID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListRecentByUser(ctx context.Context, tx repository.Tx, userID int64, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT ` + jobColumns + ` FROM job_status WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// ClaimNext locks the oldest ENQUEUED row, skipping rows other workers hold, and marks it STARTED.
func (r *jobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		q := `
SELECT ` + jobColumns + `
FROM job_status
WHERE status = 'ENQUEUED'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, q)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}
		if err := fetched.Advance(model.JobStatusStarted, nil); err != nil {
			return err
		}
		const upd = `UPDATE job_status SET status=$2, detail=NULL, updated_at=$3 WHERE request_id=$1;`
		if _, err := execSQL(ctx, r.pool, tx, upd, fetched.RequestID, string(fetched.Status), fetched.UpdatedAt); err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, requestID string, status model.JobStatus, detail json.RawMessage) error {
	const q = `
UPDATE job_status
   SET status=$2, detail=$3::jsonb, updated_at=NOW()
 WHERE request_id=$1
   AND status NOT IN ('SUCCESS', 'FAILED', 'CANCELLED');`
	tag, err := execSQL(ctx, r.pool, tx, q, requestID, string(status), jsonArg(detail))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Either the job is gone or it already finished.
	if _, err := r.FindByRequestID(ctx, tx, requestID); err != nil {
		return err
	}
	return domain.ErrJobFinished
}

func (r *jobRepo) HasLiveJob(ctx context.Context, tx repository.Tx, subscriptionID int64) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM job_status
   WHERE subscription_id=$1 AND status NOT IN ('SUCCESS', 'FAILED', 'CANCELLED')
);`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return false, err
	}
	var live bool
	if err := row.Scan(&live); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return live, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
		detail []byte
	)
	err := row.Scan(&j.RequestID, &j.SubscriptionID, &j.UserID, &j.ChatID, &j.ChatTitle,
		&status, &detail, &j.IsManual, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	if len(detail) > 0 {
		j.Detail = json.RawMessage(detail)
	}
	return &j, nil
}

// jsonArg sends an empty payload as SQL NULL rather than JSON null.
func jsonArg(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
