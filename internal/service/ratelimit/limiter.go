package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter)} }

// Wait blocks until a token for key is available or ctx is done. The bucket
// for key is created on first use with the given burst and refill rate.
func (l *Limiter) Wait(ctx context.Context, key string, burst, perSec float64) error {
	return l.get(key, burst, perSec).Wait(ctx)
}

func (l *Limiter) get(key string, burst, perSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.m[key]
	if !ok {
		b := int(burst)
		if b < 1 {
			b = 1
		}
		lim = rate.NewLimiter(rate.Limit(perSec), b)
		l.m[key] = lim
	}
	return lim
}
