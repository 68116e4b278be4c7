package adapter

import (
	"context"
	"time"
)

// Locker serializes mutations on a shared key across instances. TryLock
// returns an opaque token that must be presented to Unlock; a lock held by
// someone else fails with domain.ErrLockBusy.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
