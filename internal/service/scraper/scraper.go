// Package scraper fetches the underlying price and option chain for one
// ticker and derives the near-the-money implied volatility summary.
package scraper

import (
	"context"
	"errors"
	"time"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/shopspring/decimal"
)

type Scraper struct {
	data     repository.MarketData
	calendar repository.Calendar
	policy   retry.Policy
	depth    int
	log      *logger.Logger
	now      func() time.Time
}

func New(data repository.MarketData, calendar repository.Calendar, policy retry.Policy, depth int, log *logger.Logger) *Scraper {
	if depth < 1 {
		depth = 1
	}
	return &Scraper{
		data:     data,
		calendar: calendar,
		policy:   policy,
		depth:    depth,
		log:      log.With(logger.String("component", "scraper")),
		now:      time.Now,
	}
}

// Scrape fetches and summarises one ticker/expiration pair.
//
// Exhausted retries are not errors: the returned result simply lacks a price
// or a chain and is therefore not usable. Only context cancellation is
// returned as an error.
func (s *Scraper) Scrape(ctx context.Context, ticker, expiration string) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{
		Ticker:     ticker,
		Expiration: expiration,
		ScrapedAt:  s.now().UTC(),
	}
	if ticker == "" || expiration == "" {
		result.Skipped = true
		return result, nil
	}

	price, err := retry.DoValue(ctx, s.policy, func(ctx context.Context, attempt int) (decimal.Decimal, error) {
		p, err := s.data.CurrentPrice(ctx, ticker)
		if err == nil && !p.IsPositive() {
			err = repository.ErrNoData
		}
		return p, s.attemptFailed("price", ticker, attempt, err)
	})
	if err != nil {
		return s.exhausted(ctx, result, "price", err)
	}
	result.Price = price.InexactFloat64()
	result.HasPrice = true

	chain, err := retry.DoValue(ctx, s.policy, func(ctx context.Context, attempt int) ([]models.OptionContract, error) {
		c, err := s.data.OptionChain(ctx, ticker, expiration, "")
		if err == nil && len(c) == 0 {
			err = repository.ErrNoData
		}
		return c, s.attemptFailed("chain", ticker, attempt, err)
	})
	if err != nil {
		return s.exhausted(ctx, result, "chain", err)
	}
	result.Chain = chain

	result.NearTheMoney = SelectNearTheMoney(chain, result.Price, s.depth)
	ivs := ImpliedVolatilities(result.NearTheMoney)
	result.IVSamples = len(ivs)
	if len(ivs) > 0 {
		result.MeanIV = Mean(ivs)
		result.MedianIV = Median(ivs)
	}

	now := s.now()
	if secs, err := s.calendar.SecondsUntil(expiration, now); err == nil {
		result.SecondsToExpiration = secs
	} else {
		s.log.Warn("seconds to expiration", logger.String("ticker", ticker), logger.Error(err))
	}
	if secs, err := s.calendar.MarketSecondsUntil(expiration, now); err == nil {
		result.MarketSecondsToExpiration = secs
	} else {
		s.log.Warn("market seconds to expiration", logger.String("ticker", ticker), logger.Error(err))
	}

	return result, nil
}

func (s *Scraper) attemptFailed(what, ticker string, attempt int, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("scrape attempt failed",
			logger.String("ticker", ticker),
			logger.String("stage", what),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}
	return err
}

func (s *Scraper) exhausted(ctx context.Context, result *models.ScrapeResult, what string, err error) (*models.ScrapeResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, retry.ErrExhausted) {
		return nil, err
	}
	s.log.Warn("scrape exhausted retries",
		logger.String("ticker", result.Ticker),
		logger.String("stage", what),
		logger.Error(err),
	)
	return result, nil
}
