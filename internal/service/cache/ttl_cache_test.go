package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache[[]string]()
	c.now = func() time.Time { return now }

	c.Set("expirations", []string{"2026-10-20"}, time.Minute)
	v, ok := c.Get("expirations")
	require.True(t, ok)
	assert.Equal(t, []string{"2026-10-20"}, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("expirations")
	assert.False(t, ok)
}

func TestTTLCache_GetOrLoad(t *testing.T) {
	c := NewTTLCache[int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)

	_, err := c.GetOrLoad("bad", time.Minute, func() (int, error) { return 0, errors.New("down") })
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}
