package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	// Namespace prefixes every key, joined with a colon.
	Namespace string
}

func (c RedisConfig) clientOptions() *redis.Options {
	port := c.Port
	if port == 0 {
		port = 6379
	}
	pool := c.PoolSize
	if pool <= 0 {
		pool = 10
	}
	return &redis.Options{
		Addr:         net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     pool,
		MinIdleConns: pool / 4,
		PoolTimeout:  30 * time.Second,
	}
}

// namespace scopes relative keys under one prefix.
type namespace string

func (n namespace) key(k string) string {
	if n == "" {
		return k
	}
	return string(n) + ":" + k
}

func (n namespace) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = n.key(k)
	}
	return out
}

// RedisCache implements Service with Redis hashes and SET NX locks.
type RedisCache struct {
	client *redis.Client
	ns     namespace
}

// DialRedis connects and pings before returning.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(cfg.clientOptions())
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return NewRedisCacheFromClient(client, cfg.Namespace), nil
}

func NewRedisCacheFromClient(client *redis.Client, ns string) *RedisCache {
	return &RedisCache{client: client, ns: namespace(ns)}
}

// Client exposes the connection for components that manage their own keys.
func (c *RedisCache) Client() *redis.Client { return c.client }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := c.client.HGet(ctx, c.ns.key(key), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) HSet(ctx context.Context, key, field, value string) error {
	return c.client.HSet(ctx, c.ns.key(key), field, value).Err()
}

func (c *RedisCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, c.ns.key(key)).Result()
}

func (c *RedisCache) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.client.HDel(ctx, c.ns.key(key), fields...).Err()
}

func (c *RedisCache) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	return c.client.HIncrBy(ctx, c.ns.key(key), field, incr).Result()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, c.ns.keys(keys)...).Err()
}

// unlockScript deletes the lock only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.ns.key(key), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, c.client, []string{c.ns.key(key)}, token).Int()
	switch {
	case err != nil:
		return err
	case n == 0:
		return ErrLockNotHeld
	}
	return nil
}
