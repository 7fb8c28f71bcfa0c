package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/redis/go-redis/v9"
)

type keyset struct {
	work  string
	retry string
	dead  string
}

func keysFor(prefix string) keyset {
	return keyset{work: prefix + ":messages", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisQueue keeps pending work in a list, scheduled redeliveries in a
// sorted set scored by due time, and exhausted messages in a dead-letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client *redis.Client
	keys   keyset
	depth  DepthRecorder
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
	running  bool
	stop     context.CancelFunc
	loops    sync.WaitGroup
}

type Option func(*RedisQueue)

func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keys = keysFor(prefix)
		}
	}
}

// WithDepthRecorder reports queue depths on every retry poll.
func WithDepthRecorder(rec DepthRecorder) Option {
	return func(r *RedisQueue) { r.depth = rec }
}

func NewRedisQueue(log *logger.Logger, cfg Config, client *redis.Client, opts ...Option) *RedisQueue {
	r := &RedisQueue{
		log:      log.With(logger.String("component", "queue")),
		cfg:      cfg.normalized(),
		client:   client,
		keys:     keysFor("chainpull:queue"),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds h to its message kind. A second handler for the same kind
// is ignored.
func (r *RedisQueue) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[h.Kind()]; dup {
		r.log.Warn("handler already registered", logger.String("kind", h.Kind()))
		return
	}
	r.handlers[h.Kind()] = h
	r.log.Info("handler registered", logger.String("kind", h.Kind()))
}

func (r *RedisQueue) handler(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Start runs the configured number of workers plus the retry poller.
func (r *RedisQueue) Start() error { return r.start(true) }

// StartPublishing accepts publishes without consuming, for one-shot dispatch.
func (r *RedisQueue) StartPublishing() error { return r.start(false) }

func (r *RedisQueue) start(consume bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	r.stop = stop
	r.running = true

	addr := logger.String("addr", r.client.Options().Addr)
	if !consume {
		r.log.Info("queue publishing", addr)
		return nil
	}
	for i := 0; i < r.cfg.Workers; i++ {
		r.loops.Add(1)
		go r.work(ctx, i)
	}
	r.loops.Add(1)
	go r.poll(ctx)
	r.log.Info("queue consuming", addr, logger.Int("workers", r.cfg.Workers))
	return nil
}

// Stop cancels in-flight handlers and waits for the loops to exit. A
// handler cut short by Stop has its message returned to the work list.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.stop()
	r.mu.Unlock()

	exited := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(exited)
	}()
	select {
	case <-exited:
		r.log.Info("queue stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("queue loops still running", logger.Error(ctx.Err()))
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}
}

// Publish implements Publisher.
func (r *RedisQueue) Publish(ctx context.Context, kind string, payload interface{}, policy *retry.Policy) error {
	r.mu.RLock()
	running := r.running
	_, known := r.handlers[kind]
	r.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	raw, err := seal(kind, payload, policy, r.now())
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, r.keys.work, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

// Stats returns the current pending, retrying and dead-lettered counts.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var pending, retrying, dead *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, r.keys.work)
		retrying = p.ZCard(ctx, r.keys.retry)
		dead = p.LLen(ctx, r.keys.dead)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}
