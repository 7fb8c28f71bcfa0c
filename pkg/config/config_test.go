package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ChainPull/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("universe:\n  symbols: [AAPL]\n"))
	require.NoError(t, err)

	assert.Equal(t, "iv_history", c.Namespace)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, 4, c.Queue.Workers)
	assert.Equal(t, 2, c.Queue.RetryLimit)
	assert.Equal(t, 20*time.Second, c.Queue.RetryDelay)
	assert.Equal(t, int64(15), c.Quarantine.Threshold)
	assert.Equal(t, int64(250), c.Quarantine.PriceMinCents)
	assert.Equal(t, int64(100000), c.Quarantine.PriceMaxCents)
	assert.Equal(t, []string{"SPCE", "SNDL", "FCEL", "TLRY", "AMC", "BB", "NOK"}, c.Quarantine.Exempt)
	assert.Equal(t, []string{"SPY", "QQQ"}, c.Expiration.Daily)
	assert.Equal(t, []string{"IWM"}, c.Expiration.SemiWeekly)
	assert.Equal(t, retry.Constant(3, time.Second), c.Scraper.Retry)
	assert.Equal(t, retry.Constant(10, 10100*time.Millisecond), c.Expiration.Retry)
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
namespace: test
universe:
  symbols: [AAPL, MSFT]
scraper:
  depth: 2
  retry:
    max_attempts: 8
    delay: 10s
    factor: 1
expiration:
  daily: [SPY]
`))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Namespace)
	assert.Equal(t, 2, c.Scraper.Depth)
	assert.Equal(t, 8, c.Scraper.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, c.Scraper.Retry.Delay)
	assert.Equal(t, []string{"SPY"}, c.Expiration.Daily)
}

func TestParse_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing universe", yaml: "namespace: x\n"},
		{name: "unknown backend", yaml: "backend:\n  type: mongo\nuniverse:\n  symbols: [A]\n"},
		{name: "kafka without brokers", yaml: "backend:\n  type: kafka\nuniverse:\n  symbols: [A]\n"},
		{name: "inverted price range", yaml: "quarantine:\n  price_min_cents: 500\n  price_max_cents: 100\nuniverse:\n  symbols: [A]\n"},
		{name: "zero workers", yaml: "queue:\n  workers: 0\nuniverse:\n  symbols: [A]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: file\n"), 0o644))

	t.Setenv("CHAINPULL_SYMBOLS", "AAPL,MSFT")
	t.Setenv("CHAINPULL_NAMESPACE", "env")
	t.Setenv("CHAINPULL_WORKERS", "9")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env", c.Namespace)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Universe.Symbols)
	assert.Equal(t, 9, c.Queue.Workers)
}

func TestRetryPolicy(t *testing.T) {
	c, err := Parse([]byte("universe:\n  symbols: [AAPL]\n"))
	require.NoError(t, err)

	p := c.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 20*time.Second, p.Delay)
}
