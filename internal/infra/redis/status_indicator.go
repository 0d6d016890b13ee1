package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"telegram-insight-agent/internal/domain/ports/repository"
)

var _ repository.StatusIndicatorRepository = (*StatusIndicatorRepo)(nil)

// StatusIndicatorRepo stores which chat message shows a request's progress, under status_msg:<request_id>.
type StatusIndicatorRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStatusIndicatorRepo(client RedisClient, ttl time.Duration) *StatusIndicatorRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusIndicatorRepo{client: client, ttl: ttl}
}

func StatusIndicatorKey(requestID string) string {
	return "status_msg:" + requestID
}

func (s *StatusIndicatorRepo) Set(ctx context.Context, requestID string, ind *repository.StatusIndicator) error {
	data, err := json.Marshal(ind)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, StatusIndicatorKey(requestID), data, s.ttl)
}

func (s *StatusIndicatorRepo) Get(ctx context.Context, requestID string) (*repository.StatusIndicator, error) {
	data, err := s.client.Get(ctx, StatusIndicatorKey(requestID))
	if errors.Is(err, Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ind repository.StatusIndicator
	if err := json.Unmarshal([]byte(data), &ind); err != nil {
		return nil, err
	}
	return &ind, nil
}

func (s *StatusIndicatorRepo) Clear(ctx context.Context, requestID string) error {
	return s.client.Del(ctx, StatusIndicatorKey(requestID))
}
