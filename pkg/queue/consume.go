package queue

import (
	"context"
	"errors"
	"time"

	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/redis/go-redis/v9"
)

const popTimeout = time.Second

func (r *RedisQueue) work(ctx context.Context, id int) {
	defer r.loops.Done()
	log := r.log.With(logger.Int("worker_id", id))
	log.Debug("worker started")
	for ctx.Err() == nil {
		r.take(ctx)
	}
	log.Debug("worker stopped")
}

// take pops at most one message and runs its handler. It reports whether a
// message was taken off the work list.
func (r *RedisQueue) take(ctx context.Context) bool {
	popped, err := r.client.BRPop(ctx, popTimeout, r.keys.work).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			r.log.Error("pop message", logger.Error(err))
			_ = retry.Sleep(ctx, time.Second)
		}
		return false
	}
	if len(popped) < 2 {
		return false
	}

	env, err := open(popped[1])
	if err != nil {
		r.log.Error("drop undecodable message", logger.Error(err))
		return true
	}
	r.run(ctx, env)
	return true
}

func (r *RedisQueue) run(ctx context.Context, env Envelope) {
	// writes after the handler must survive a shutdown cancel
	after := context.WithoutCancel(ctx)
	log := r.log.With(logger.String("id", env.ID), logger.String("kind", env.Kind))

	h, ok := r.handler(env.Kind)
	if !ok {
		env.LastError = ErrUnknownKind.Error()
		log.Error("dead-letter unhandled message")
		if err := r.bury(after, env); err != nil {
			log.Error("dead-letter message", logger.Error(err))
		}
		return
	}

	start := time.Now()
	err := h.Handle(ctx, env.Payload)
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		log.Warn("handler interrupted by shutdown", logger.Duration("elapsed", time.Since(start)))
		if err := r.giveBack(after, env); err != nil {
			log.Error("return message to work list", logger.Error(err))
		}
	default:
		r.fail(after, log, env, err)
	}
}

// fail records the attempt, then reschedules the message or dead-letters it
// once its policy runs out of attempts.
func (r *RedisQueue) fail(ctx context.Context, log *logger.Logger, env Envelope, cause error) {
	env.Attempts++
	env.LastError = cause.Error()
	policy := env.policy(r.cfg)
	log = log.With(logger.Int("attempt", env.Attempts))

	if env.Attempts >= policy.Attempts() {
		log.Error("attempts exhausted, dead-lettering", logger.Error(cause))
		if err := r.bury(ctx, env); err != nil {
			log.Error("dead-letter message", logger.Error(err))
		}
		return
	}

	due := r.now().Add(policy.Backoff(env.Attempts))
	log.Warn("handler failed, retry scheduled", logger.Error(cause),
		logger.String("retry_at", due.Format(time.RFC3339)))
	if err := r.postpone(ctx, env, due); err != nil {
		log.Error("schedule retry", logger.Error(err))
	}
}
