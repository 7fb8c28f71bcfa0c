package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// HashStore defines per-field atomic operations on namespaced hashes.
// Keys are relative to the store prefix.
type HashStore interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// ErrLockNotHeld is returned by Unlock when the lock expired or was taken
// over by another holder.
var ErrLockNotHeld = errors.New("lock not held")

// Locker provides short-lived advisory locks. TryLock returns a token that
// identifies the holder; Unlock only releases a lock that still carries it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Service is the full store used by the pipeline.
type Service interface {
	HashStore
	Locker
}
