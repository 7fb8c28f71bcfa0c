package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ChainPull/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// promoteScript moves a due retry onto the work list only if this caller
// removed it from the retry set, so concurrent pollers cannot duplicate it.
var promoteScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
	redis.call("LPUSH", KEYS[2], ARGV[1])
	return 1
end
return 0
`)

func (r *RedisQueue) postpone(ctx context.Context, env Envelope, due time.Time) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}
	return r.client.ZAdd(ctx, r.keys.retry, redis.Z{Score: float64(due.Unix()), Member: raw}).Err()
}

func (r *RedisQueue) bury(ctx context.Context, env Envelope) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.keys.dead, raw).Err()
}

// giveBack puts env at the consuming end of the work list, unchanged.
func (r *RedisQueue) giveBack(ctx context.Context, env Envelope) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.keys.work, raw).Err()
}

func (r *RedisQueue) poll(ctx context.Context) {
	defer r.loops.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue(ctx)
			r.sample(ctx)
		}
	}
}

// promoteDue moves every retry whose due time has passed back to the work list.
func (r *RedisQueue) promoteDue(ctx context.Context) int {
	due, err := r.due(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("list due retries", logger.Error(err))
		}
		return 0
	}
	moved := 0
	for _, member := range due {
		ok, err := r.promote(ctx, member)
		if err != nil {
			if ctx.Err() != nil {
				return moved
			}
			r.log.Error("promote retry", logger.Error(err))
			continue
		}
		if ok {
			moved++
		}
	}
	return moved
}

func (r *RedisQueue) due(ctx context.Context) ([]string, error) {
	return r.client.ZRangeByScore(ctx, r.keys.retry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
}

// promote reports whether member was moved by this call.
func (r *RedisQueue) promote(ctx context.Context, member string) (bool, error) {
	n, err := promoteScript.Run(ctx, r.client, []string{r.keys.retry, r.keys.work}, member).Int()
	return n == 1, err
}

func (r *RedisQueue) sample(ctx context.Context) {
	if r.depth == nil {
		return
	}
	stats, err := r.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Warn("sample queue depth", logger.Error(err))
		}
		return
	}
	r.depth.RecordQueueDepth(stats.Pending, stats.Retrying, stats.Dead)
}
