package usecase

import (
	"context"
	"errors"
	"sync"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/service/quarantine"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/metrics"
	"ChainPull/pkg/retry"
)

type recordingQueue struct {
	mu       sync.Mutex
	jobs     []models.ScrapeJob
	policies []retry.Policy
	failFor  string
}

func (q *recordingQueue) Publish(_ context.Context, msgType string, payload interface{}, policy *retry.Policy) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := payload.(models.ScrapeJob)
	if msgType != ScrapeTickerJobType {
		return errors.New("unknown type " + msgType)
	}
	if job.Ticker == q.failFor {
		return errors.New("redis: connection refused")
	}
	q.jobs = append(q.jobs, job)
	q.policies = append(q.policies, *policy)
	return nil
}

type fakeExpirations struct {
	date        string
	found       bool
	err         error
	calls       int
	quarantined models.TickerSet
}

func (f *fakeExpirations) Resolve(_ context.Context, _ string, quarantined models.TickerSet) (string, bool, error) {
	f.calls++
	f.quarantined = quarantined
	return f.date, f.found, f.err
}

type fakeScraper struct {
	results map[string]*models.ScrapeResult
	err     error
	gotExp  []string
}

func (f *fakeScraper) Scrape(_ context.Context, ticker, expiration string) (*models.ScrapeResult, error) {
	f.gotExp = append(f.gotExp, expiration)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[ticker]; ok && expiration != "" {
		return r, nil
	}
	return &models.ScrapeResult{Ticker: ticker, Expiration: expiration, Skipped: expiration == ""}, nil
}

func usableResult(ticker string, price float64) *models.ScrapeResult {
	return &models.ScrapeResult{
		Ticker:     ticker,
		Expiration: "2026-10-23",
		Price:      price,
		HasPrice:   true,
		IVSamples:  2,
		MeanIV:     0.25,
		MedianIV:   0.25,
		NearTheMoney: []models.OptionContract{
			{StrikePrice: 100, Type: models.OptionTypeCall, ImpliedVolatility: 0.25},
			{StrikePrice: 100, Type: models.OptionTypePut, ImpliedVolatility: 0.25},
		},
	}
}

func newQuarantine() (*quarantine.Manager, *cache.MemoryCache) {
	store := cache.NewMemoryCache()
	return quarantine.NewManager(store, quarantine.DefaultPolicy(), metrics.Nop{}, logger.NewNop()), store
}
