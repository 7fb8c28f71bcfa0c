// Package expiration resolves and caches the next option expiration date per
// ticker in the hash <namespace>:expr.
package expiration

import (
	"context"
	"errors"
	"fmt"

	"ChainPull/internal/domain/models"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"
)

// HashKey is the expiration hash, relative to the store namespace.
const HashKey = "expr"

type Cache struct {
	store      cache.HashStore
	classifier *Classifier
	resolver   Resolver
	policy     retry.Policy
	log        *logger.Logger
}

func NewCache(store cache.HashStore, classifier *Classifier, resolver Resolver, policy retry.Policy, log *logger.Logger) *Cache {
	return &Cache{
		store:      store,
		classifier: classifier,
		resolver:   resolver,
		policy:     policy,
		log:        log.With(logger.String("component", "expiration_cache")),
	}
}

// Resolve returns the expiration date to scrape for ticker.
//
// A ticker in quarantined is reported not found without any lookup; pass a
// nil set to bypass quarantine. Exhausting the resolver budget is not an
// error: the result is simply not found. Only store failures and context
// cancellation are returned as errors.
func (c *Cache) Resolve(ctx context.Context, ticker string, quarantined models.TickerSet) (string, bool, error) {
	if quarantined.Contains(ticker) {
		return "", false, nil
	}

	category := c.classifier.Classify(ticker)
	if category.Cacheable() {
		date, err := c.store.HGet(ctx, HashKey, ticker)
		switch {
		case err == nil && date != "":
			return date, true, nil
		case err != nil && !errors.Is(err, cache.ErrCacheMiss):
			return "", false, fmt.Errorf("read expiration %s: %w", ticker, err)
		}
	}

	date, err := retry.DoValue(ctx, c.policy, func(ctx context.Context, attempt int) (string, error) {
		d, err := c.resolver.NextExpiration(ctx, ticker)
		if err != nil {
			c.log.Debug("expiration lookup failed",
				logger.String("ticker", ticker),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		return d, err
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			c.log.Warn("expiration not resolved",
				logger.String("ticker", ticker),
				logger.Error(err),
			)
			return "", false, nil
		}
		return "", false, err
	}

	if category.Cacheable() {
		if err := c.store.HSet(ctx, HashKey, ticker, date); err != nil {
			return "", false, fmt.Errorf("write expiration %s: %w", ticker, err)
		}
	}
	return date, true, nil
}

// AllCached returns every cached ticker to date mapping.
func (c *Cache) AllCached(ctx context.Context) (map[string]string, error) {
	entries, err := c.store.HGetAll(ctx, HashKey)
	if err != nil {
		return nil, fmt.Errorf("read expirations: %w", err)
	}
	return entries, nil
}

// Purge drops the whole expiration hash.
func (c *Cache) Purge(ctx context.Context) error {
	if err := c.store.Delete(ctx, HashKey); err != nil {
		return fmt.Errorf("purge expirations: %w", err)
	}
	c.log.Info("expiration cache purged")
	return nil
}

// PurgeIfStale purges the cache only when some cached expiration equals
// today, i.e. a contract being tracked expires today. It reports whether the
// cache was purged.
func (c *Cache) PurgeIfStale(ctx context.Context, today string) (bool, error) {
	entries, err := c.AllCached(ctx)
	if err != nil {
		return false, err
	}
	for _, date := range entries {
		if date == today {
			return true, c.Purge(ctx)
		}
	}
	return false, nil
}

// PopulateReport counts the outcomes of Populate.
type PopulateReport struct {
	Resolved int
	NotFound int
	Failed   int
}

// Populate resolves every ticker, filling the cache for standard tickers.
func (c *Cache) Populate(ctx context.Context, tickers []string, quarantined models.TickerSet) (PopulateReport, error) {
	var report PopulateReport
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, found, err := c.Resolve(ctx, ticker, quarantined)
		switch {
		case err != nil:
			report.Failed++
			c.log.Error("populate expiration failed",
				logger.String("ticker", ticker),
				logger.Error(err),
			)
		case found:
			report.Resolved++
		default:
			report.NotFound++
		}
	}
	return report, nil
}
