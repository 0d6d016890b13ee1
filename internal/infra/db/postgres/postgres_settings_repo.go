package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

var _ repository.UserSettingsRepository = (*settingsRepo)(nil)

type settingsRepo struct {
	pool *pgxpool.Pool
}

func NewUserSettingsRepo(pool *pgxpool.Pool) *settingsRepo {
	return &settingsRepo{pool: pool}
}

func (r *settingsRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserSettings, error) {
	const q = `SELECT user_id, default_prompt, updated_at FROM user_settings WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var s model.UserSettings
	if err := row.Scan(&s.UserID, &s.DefaultPrompt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *settingsRepo) SetDefaultPrompt(ctx context.Context, tx repository.Tx, userID int64, prompt string) error {
	const q = `
INSERT INTO user_settings (user_id, default_prompt, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  default_prompt = EXCLUDED.default_prompt,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, prompt)
	return err
}
