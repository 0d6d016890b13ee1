// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"strings"
	"time"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/infra/metrics"

	"github.com/google/uuid"
)

var _ adapter.Locker = (*RedisLocker)(nil)

const lockAttempts = 3

type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

// TryLock returns domain.ErrLockNotAcquired at once when another holder owns key;
// transport errors are retried a few times.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < lockAttempts; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl)
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond) // wait before retrying
			continue
		}
		if !ok {
			metrics.IncLockRequest(lockName(key), "busy")
			return "", domain.ErrLockNotAcquired
		}
		metrics.IncLockRequest(lockName(key), "acquired")
		return token, nil
	}
	metrics.IncLockRequest(lockName(key), "error")
	return "", lastErr
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.cli.DelIfEqual(ctx, key, token)
}

func lockName(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
