package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_BurstThenBlocks(t *testing.T) {
	l := New()
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "k", 2, 0.01))
	require.NoError(t, l.Wait(ctx, "k", 2, 0.01))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(short, "k", 2, 0.01))

	// other keys have their own bucket
	assert.NoError(t, l.Wait(ctx, "other", 2, 0.01))
}

func TestWait_Refills(t *testing.T) {
	l := New()
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "k", 1, 50))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "k", 1, 50))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWait_ContextCancel(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 0.01))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx, "k", 1, 0.01), context.Canceled)
}

func TestWait_ZeroBurstStillAdmits(t *testing.T) {
	l := New()
	assert.NoError(t, l.Wait(context.Background(), "k", 0, 1))
}

func TestWait_SharesBucketAcrossGoroutines(t *testing.T) {
	l := New()
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "k", 1, 0.01))

	done := make(chan error, 1)
	go func() {
		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		done <- l.Wait(short, "k", 1, 0.01)
	}()
	assert.Error(t, <-done)
}
