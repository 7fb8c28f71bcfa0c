// Package quarantine keeps a failure score per ticker in the hash
// <namespace>:blacklist and filters tickers whose score reached the threshold.
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
)

// HashKey is the quarantine hash, relative to the store namespace.
const HashKey = "blacklist"

// Rescrape fetches a fresh result for a ticker during an audit.
type Rescrape func(ctx context.Context, ticker string) (*models.ScrapeResult, error)

// AuditReport lists tickers cleared and kept by Audit.
type AuditReport struct {
	Cleared  []string
	Retained []string
}

type Manager struct {
	store   cache.HashStore
	policy  Policy
	exempt  models.TickerSet
	metrics repository.Metrics
	log     *logger.Logger
}

func NewManager(store cache.HashStore, policy Policy, metrics repository.Metrics, log *logger.Logger) *Manager {
	policy = policy.filled()
	return &Manager{
		store:   store,
		policy:  policy,
		exempt:  models.NewTickerSet(policy.Exempt...),
		metrics: metrics,
		log:     log.With(logger.String("component", "quarantine")),
	}
}

func (m *Manager) Policy() Policy { return m.policy }

// RecordFailure adds incr to the ticker score and returns the new score.
func (m *Manager) RecordFailure(ctx context.Context, ticker string, incr int64) (int64, error) {
	score, err := m.store.HIncrBy(ctx, HashKey, ticker, incr)
	if err != nil {
		return 0, fmt.Errorf("score %s: %w", ticker, err)
	}
	return score, nil
}

func (m *Manager) Remove(ctx context.Context, ticker string) error {
	if err := m.store.HDel(ctx, HashKey, ticker); err != nil {
		return fmt.Errorf("clear %s: %w", ticker, err)
	}
	return nil
}

// Score returns the ticker score, 0 when absent.
func (m *Manager) Score(ctx context.Context, ticker string) (int64, error) {
	v, err := m.store.HGet(ctx, HashKey, ticker)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read score %s: %w", ticker, err)
	}
	return strconv.ParseInt(v, 10, 64)
}

// Entries returns every scored ticker. Unparsable scores are skipped.
func (m *Manager) Entries(ctx context.Context) (map[string]int64, error) {
	raw, err := m.store.HGetAll(ctx, HashKey)
	if err != nil {
		return nil, fmt.Errorf("read quarantine: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for ticker, v := range raw {
		score, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			m.log.Warn("invalid quarantine score",
				logger.String("ticker", ticker),
				logger.String("value", v),
			)
			continue
		}
		out[ticker] = score
	}
	return out, nil
}

// QuarantinedTickers returns the non-exempt tickers at or above threshold.
func (m *Manager) QuarantinedTickers(ctx context.Context) (models.TickerSet, error) {
	entries, err := m.Entries(ctx)
	if err != nil {
		return nil, err
	}
	set := make(models.TickerSet)
	for ticker, score := range entries {
		if score >= m.policy.Threshold && !m.exempt.Contains(ticker) {
			set[ticker] = struct{}{}
		}
	}
	return set, nil
}

// Evaluate scores a result against the manager policy.
func (m *Manager) Evaluate(r *models.ScrapeResult) Verdict {
	return Evaluate(m.policy, m.exempt, r)
}

// Apply scores a finished scrape and records it.
func (m *Manager) Apply(ctx context.Context, r *models.ScrapeResult) (Verdict, error) {
	v := m.Evaluate(r)
	if v.Clear {
		return v, m.Remove(ctx, r.Ticker)
	}
	if v.Score == 0 {
		return v, nil
	}

	score, err := m.RecordFailure(ctx, r.Ticker, v.Score)
	if err != nil {
		return v, err
	}
	for _, rule := range v.Rules {
		m.metrics.RecordQuarantineScore(rule, v.Score)
	}
	m.log.Info("quarantine score raised",
		logger.String("ticker", r.Ticker),
		logger.Strings("rules", v.Rules),
		logger.Int64("added", v.Score),
		logger.Int64("score", score),
		logger.Bool("quarantined", score >= m.policy.Threshold),
	)
	return v, nil
}

// Audit re-checks quarantined tickers. Exempt entries are removed outright;
// every other entry at or above threshold is re-scraped once and removed iff
// neither rule fires. Failed re-scrapes keep the ticker quarantined.
func (m *Manager) Audit(ctx context.Context, rescrape Rescrape) (AuditReport, error) {
	var report AuditReport

	entries, err := m.Entries(ctx)
	if err != nil {
		return report, err
	}
	tickers := make([]string, 0, len(entries))
	for t := range entries {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if m.exempt.Contains(ticker) {
			if err := m.Remove(ctx, ticker); err != nil {
				return report, err
			}
			report.Cleared = append(report.Cleared, ticker)
			continue
		}
		if entries[ticker] < m.policy.Threshold {
			continue
		}

		result, err := rescrape(ctx, ticker)
		if err == nil && result == nil {
			err = errors.New("empty audit result")
		}
		if err != nil {
			m.log.Warn("audit scrape failed",
				logger.String("ticker", ticker),
				logger.Error(err),
			)
			report.Retained = append(report.Retained, ticker)
			continue
		}

		if v := m.Evaluate(result); v.Score > 0 {
			report.Retained = append(report.Retained, ticker)
			continue
		}
		if err := m.Remove(ctx, ticker); err != nil {
			return report, err
		}
		report.Cleared = append(report.Cleared, ticker)
	}

	m.log.Info("quarantine audit complete",
		logger.Int("cleared", len(report.Cleared)),
		logger.Int("retained", len(report.Retained)),
	)
	return report, nil
}
