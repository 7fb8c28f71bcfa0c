package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockItem struct {
	token    string
	expireAt time.Time
}

// MemoryCache implements Service in process memory. Used for local runs and tests.
type MemoryCache struct {
	mutex  sync.Mutex
	hashes map[string]map[string]string
	locks  map[string]lockItem
	now    func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		hashes: make(map[string]map[string]string),
		locks:  make(map[string]lockItem),
		now:    time.Now,
	}
}

func (mc *MemoryCache) HGet(_ context.Context, key, field string) (string, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	v, ok := mc.hashes[key][field]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (mc *MemoryCache) HSet(_ context.Context, key, field, value string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	h, ok := mc.hashes[key]
	if !ok {
		h = make(map[string]string)
		mc.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (mc *MemoryCache) HGetAll(_ context.Context, key string) (map[string]string, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	out := make(map[string]string, len(mc.hashes[key]))
	for f, v := range mc.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (mc *MemoryCache) HDel(_ context.Context, key string, fields ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	h, ok := mc.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(mc.hashes, key)
	}
	return nil
}

func (mc *MemoryCache) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	h, ok := mc.hashes[key]
	if !ok {
		h = make(map[string]string)
		mc.hashes[key] = h
	}

	var cur int64
	if raw, ok := h[field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.hashes, key)
		delete(mc.locks, key)
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if l, ok := mc.locks[key]; ok && mc.now().Before(l.expireAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	mc.locks[key] = lockItem{token: token, expireAt: mc.now().Add(ttl)}
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	l, ok := mc.locks[key]
	if !ok || l.token != token || !mc.now().Before(l.expireAt) {
		return ErrLockNotHeld
	}
	delete(mc.locks, key)
	return nil
}
