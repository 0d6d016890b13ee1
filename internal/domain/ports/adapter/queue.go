package adapter

import (
	"context"
	"time"
)

// Locker guards work that must not run concurrently across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
