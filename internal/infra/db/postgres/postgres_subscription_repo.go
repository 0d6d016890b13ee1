package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, chat_id, chat_title, prompt, last_processed_message_id, is_active, created_at`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO monitored_chats (user_id, chat_id, chat_title, prompt, last_processed_message_id, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, s.UserID, s.ChatID, s.ChatTitle, s.Prompt, s.LastProcessedMessageID, s.IsActive, s.CreatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&s.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM monitored_chats WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByUserAndChat(ctx context.Context, tx repository.Tx, userID, chatID int64) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM monitored_chats WHERE user_id=$1 AND chat_id=$2;`
	return r.queryOne(ctx, tx, q, userID, chatID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM monitored_chats WHERE user_id=$1 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) ListActiveUserIDs(ctx context.Context, tx repository.Tx) ([]int64, error) {
	const q = `SELECT DISTINCT user_id FROM monitored_chats WHERE is_active ORDER BY user_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) UpdatePrompt(ctx context.Context, tx repository.Tx, userID, chatID int64, prompt string) error {
	const q = `UPDATE monitored_chats SET prompt=$3 WHERE user_id=$1 AND chat_id=$2;`
	return r.execOne(ctx, tx, q, userID, chatID, prompt)
}

func (r *subscriptionRepo) SetActive(ctx context.Context, tx repository.Tx, userID, chatID int64, active bool) error {
	const q = `UPDATE monitored_chats SET is_active=$3 WHERE user_id=$1 AND chat_id=$2;`
	return r.execOne(ctx, tx, q, userID, chatID, active)
}

func (r *subscriptionRepo) SetWatermark(ctx context.Context, tx repository.Tx, id int64, lastMessageID int64) error {
	const q = `UPDATE monitored_chats SET last_processed_message_id=$2 WHERE id=$1;`
	return r.execOne(ctx, tx, q, id, lastMessageID)
}

func (r *subscriptionRepo) Delete(ctx context.Context, tx repository.Tx, userID, chatID int64) error {
	const q = `DELETE FROM monitored_chats WHERE user_id=$1 AND chat_id=$2;`
	return r.execOne(ctx, tx, q, userID, chatID)
}

func (r *subscriptionRepo) execOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.ChatID, &s.ChatTitle, &s.Prompt, &s.LastProcessedMessageID, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}
