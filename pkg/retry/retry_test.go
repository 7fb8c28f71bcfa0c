package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_AlwaysFailing_RunsExactlyMaxAttempts(t *testing.T) {
	for _, attempts := range []int{1, 3, 10} {
		calls := 0
		p := Constant(attempts, 0)

		err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			return errors.New("boom")
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, attempts, calls)
	}
}

func TestDo_StopsOnFirstSuccess(t *testing.T) {
	calls := 0
	p := Constant(5, 0)

	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Constant(3, time.Hour)

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoValue_ReturnsResult(t *testing.T) {
	v, err := DoValue(context.Background(), Constant(2, 0), func(_ context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("first fails")
		}
		return "2024-01-19", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-19", v)
}

func TestBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Second, Factor: 2, MaxDelay: 3 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 3*time.Second, p.Backoff(3))
	assert.Equal(t, 3*time.Second, p.Backoff(4))

	jittered := Policy{Delay: 10 * time.Second, Jitter: 0.5}
	for i := 0; i < 20; i++ {
		d := jittered.Backoff(1)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	bad := errors.New("400 bad request")
	err := Constant(5, 0).Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(bad)
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, bad, err)
	assert.False(t, errors.Is(err, ErrExhausted))
	assert.NoError(t, Permanent(nil))
}
