package expiration

import (
	"context"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
)

// Resolver finds the expiration date a ticker should be scraped against.
type Resolver interface {
	NextExpiration(ctx context.Context, ticker string) (string, error)
}

// Classifier maps a ticker to the way its expirations are cached.
type Classifier struct {
	daily      models.TickerSet
	semiWeekly models.TickerSet
}

func NewClassifier(daily, semiWeekly []string) *Classifier {
	return &Classifier{
		daily:      models.NewTickerSet(daily...),
		semiWeekly: models.NewTickerSet(semiWeekly...),
	}
}

func (c *Classifier) Classify(ticker string) models.ExpirationCategory {
	switch {
	case c.daily.Contains(ticker):
		return models.CategoryDaily
	case c.semiWeekly.Contains(ticker):
		return models.CategorySemiWeekly
	default:
		return models.CategoryStandard
	}
}

// ChainResolver picks the earliest listed expiration strictly after today in
// exchange time, so contracts are never scraped on their expiration day.
type ChainResolver struct {
	data     repository.MarketData
	calendar repository.Calendar
	now      func() time.Time
}

func NewChainResolver(data repository.MarketData, calendar repository.Calendar) *ChainResolver {
	return &ChainResolver{data: data, calendar: calendar, now: time.Now}
}

func (r *ChainResolver) NextExpiration(ctx context.Context, ticker string) (string, error) {
	dates, err := r.data.Expirations(ctx, ticker)
	if err != nil {
		return "", err
	}

	today := r.calendar.Today(r.now())
	next := ""
	for _, d := range dates {
		// ISO dates order lexically
		if d > today && (next == "" || d < next) {
			next = d
		}
	}
	if next == "" {
		return "", fmt.Errorf("%s: no expiration after %s: %w", ticker, today, repository.ErrNoData)
	}
	return next, nil
}
