package quarantine

import (
	"context"
	"errors"
	"testing"

	"ChainPull/internal/domain/models"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() (*Manager, *cache.MemoryCache) {
	store := cache.NewMemoryCache()
	return NewManager(store, DefaultPolicy(), metrics.Nop{}, logger.NewNop()), store
}

func usable(ticker string, price float64) *models.ScrapeResult {
	return &models.ScrapeResult{Ticker: ticker, Price: price, HasPrice: true, IVSamples: 4, MeanIV: 0.3}
}

func failed(ticker string) *models.ScrapeResult {
	return &models.ScrapeResult{Ticker: ticker}
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()
	exempt := models.NewTickerSet(p.Exempt...)

	tests := []struct {
		name   string
		result *models.ScrapeResult
		score  int64
		rules  []string
		clear  bool
	}{
		{name: "healthy", result: usable("AAPL", 250.12)},
		{name: "no price", result: failed("AAPL"), score: 3, rules: []string{RuleScrapeFailed}},
		{name: "price but no iv", result: &models.ScrapeResult{Ticker: "AAPL", Price: 1, HasPrice: true}, score: 3, rules: []string{RuleScrapeFailed}},
		{name: "min bound", result: usable("AAPL", 2.50)},
		{name: "below min", result: usable("AAPL", 2.49), score: 1, rules: []string{RuleBadPrice}},
		{name: "max bound", result: usable("AAPL", 1000.00)},
		{name: "above max", result: usable("AAPL", 1000.01), score: 1, rules: []string{RuleBadPrice}},
		{name: "exempt failure", result: failed("AMC"), clear: true},
		{name: "exempt cheap", result: usable("SNDL", 1.10), clear: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(p, exempt, tt.result)
			assert.Equal(t, tt.score, v.Score)
			assert.Equal(t, tt.rules, v.Rules)
			assert.Equal(t, tt.clear, v.Clear)
		})
	}
}

func TestPriceCents(t *testing.T) {
	assert.Equal(t, int64(250), PriceCents(2.5))
	assert.Equal(t, int64(43871), PriceCents(438.71))
	assert.Equal(t, int64(100001), PriceCents(1000.01))
	assert.Equal(t, int64(29), PriceCents(0.285))
}

func TestApply_ScrapeFailureOnlyRuleOne(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager()

	v, err := m.Apply(ctx, failed("XYZ"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Score)

	score, err := m.Score(ctx, "XYZ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), score)
}

func TestApply_ThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager()

	for i := 0; i < 4; i++ {
		_, err := m.Apply(ctx, failed("XYZ"))
		require.NoError(t, err)
	}
	set, err := m.QuarantinedTickers(ctx)
	require.NoError(t, err)
	assert.False(t, set.Contains("XYZ"), "score 12 is below threshold")

	_, err = m.Apply(ctx, usable("XYZ", 1.00))
	require.NoError(t, err)
	_, err = m.Apply(ctx, usable("XYZ", 1.00))
	require.NoError(t, err)
	set, err = m.QuarantinedTickers(ctx)
	require.NoError(t, err)
	assert.False(t, set.Contains("XYZ"), "score 14 is below threshold")

	_, err = m.Apply(ctx, usable("XYZ", 1.00))
	require.NoError(t, err)
	set, err = m.QuarantinedTickers(ctx)
	require.NoError(t, err)
	assert.True(t, set.Contains("XYZ"), "score 15 reaches threshold")
}

func TestApply_ExemptClearsEntry(t *testing.T) {
	ctx := context.Background()
	m, store := newManager()
	_, err := store.HIncrBy(ctx, HashKey, "AMC", 40)
	require.NoError(t, err)

	set, err := m.QuarantinedTickers(ctx)
	require.NoError(t, err)
	assert.False(t, set.Contains("AMC"), "exempt tickers are never quarantined")

	v, err := m.Apply(ctx, failed("AMC"))
	require.NoError(t, err)
	assert.True(t, v.Clear)

	score, err := m.Score(ctx, "AMC")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestApply_HealthyLeavesScore(t *testing.T) {
	ctx := context.Background()
	m, store := newManager()
	_, err := store.HIncrBy(ctx, HashKey, "AAPL", 6)
	require.NoError(t, err)

	_, err = m.Apply(ctx, usable("AAPL", 250))
	require.NoError(t, err)

	score, err := m.Score(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(6), score)
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	m, store := newManager()
	for ticker, score := range map[string]int64{
		"AMC":   30, // exempt
		"FIXED": 15,
		"CHEAP": 18,
		"DOWN":  21,
		"LOW":   3, // below threshold
	} {
		_, err := store.HIncrBy(ctx, HashKey, ticker, score)
		require.NoError(t, err)
	}

	scraped := map[string]int{}
	rescrape := func(_ context.Context, ticker string) (*models.ScrapeResult, error) {
		scraped[ticker]++
		switch ticker {
		case "FIXED":
			return usable(ticker, 42), nil
		case "CHEAP":
			return usable(ticker, 0.5), nil
		default:
			return nil, errors.New("brokerage down")
		}
	}

	report, err := m.Audit(ctx, rescrape)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AMC", "FIXED"}, report.Cleared)
	assert.ElementsMatch(t, []string{"CHEAP", "DOWN"}, report.Retained)
	assert.Equal(t, map[string]int{"FIXED": 1, "CHEAP": 1, "DOWN": 1}, scraped)

	entries, err := m.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"CHEAP": 18, "DOWN": 21, "LOW": 3}, entries)
}

func TestNewManager_FillsUnsetPolicy(t *testing.T) {
	m := NewManager(cache.NewMemoryCache(), Policy{Threshold: 20, Exempt: []string{"AMC"}}, metrics.Nop{}, logger.NewNop())
	p := m.Policy()
	assert.Equal(t, int64(20), p.Threshold)
	assert.Equal(t, int64(3), p.ScrapeFailScore)
	assert.Equal(t, int64(1), p.BadPriceScore)
	assert.Equal(t, int64(250), p.PriceMinCents)
	assert.Equal(t, int64(100000), p.PriceMaxCents)
	assert.Equal(t, []string{"AMC"}, p.Exempt)
}
