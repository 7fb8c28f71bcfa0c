package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	drepo "ChainPull/internal/domain/repository"
	"ChainPull/internal/service/quarantine"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/queue"
)

const ScrapeTickerJobType = "scrape_ticker"

// ExpirationSource resolves the expiration to scrape for a ticker.
type ExpirationSource interface {
	Resolve(ctx context.Context, ticker string, quarantined models.TickerSet) (string, bool, error)
}

// ChainScraper fetches one ticker/expiration pair.
type ChainScraper interface {
	Scrape(ctx context.Context, ticker, expiration string) (*models.ScrapeResult, error)
}

// QuarantineScorer scores a finished scrape.
type QuarantineScorer interface {
	Apply(ctx context.Context, r *models.ScrapeResult) (quarantine.Verdict, error)
}

// ScrapeTickerJob is the worker side of a cycle: resolve, scrape, persist,
// then score. Returning an error makes the queue redeliver the message.
type ScrapeTickerJob struct {
	expirations ExpirationSource
	scraper     ChainScraper
	processor   *SnapshotProcessor
	quarantine  QuarantineScorer
	metrics     drepo.Metrics
	log         *logger.Logger
}

var _ queue.Handler = (*ScrapeTickerJob)(nil)

func NewScrapeTickerJob(
	expirations ExpirationSource,
	scraper ChainScraper,
	processor *SnapshotProcessor,
	scorer QuarantineScorer,
	metrics drepo.Metrics,
	log *logger.Logger,
) *ScrapeTickerJob {
	return &ScrapeTickerJob{
		expirations: expirations,
		scraper:     scraper,
		processor:   processor,
		quarantine:  scorer,
		metrics:     metrics,
		log:         log.With(logger.String("component", "scrape_job")),
	}
}

func (j *ScrapeTickerJob) Kind() string { return ScrapeTickerJobType }

func (j *ScrapeTickerJob) Handle(ctx context.Context, payload json.RawMessage) error {
	start := time.Now()
	var job models.ScrapeJob
	if err := json.Unmarshal(payload, &job); err != nil {
		j.metrics.RecordJob("invalid")
		return fmt.Errorf("decode scrape job: %w", err)
	}
	if job.Ticker == "" {
		j.metrics.RecordJob("invalid")
		return fmt.Errorf("scrape job without ticker")
	}
	log := j.log.With(logger.String("ticker", job.Ticker), logger.Int64("cycle", job.Timestamp))
	// forced jobs come from an operator and are reported at info level
	done := log.Debug
	if job.Force {
		log = log.With(logger.Bool("forced", true))
		done = log.Info
	}

	// workers never consult quarantine; the dispatcher already filtered
	expiration, found, err := j.expirations.Resolve(ctx, job.Ticker, nil)
	if err != nil {
		j.metrics.RecordJob("error")
		return fmt.Errorf("resolve expiration %s: %w", job.Ticker, err)
	}
	if !found {
		expiration = ""
	}

	result, err := j.scraper.Scrape(ctx, job.Ticker, expiration)
	if err != nil {
		j.metrics.RecordJob("error")
		return fmt.Errorf("scrape %s: %w", job.Ticker, err)
	}

	var persistErr error
	if result.Usable() {
		persistErr = j.processor.Process(ctx, result, job.Timestamp)
		if persistErr != nil {
			log.Error("persist snapshot", logger.Error(persistErr))
		}
	}

	verdict, applyErr := j.quarantine.Apply(ctx, result)
	if applyErr != nil {
		log.Error("apply quarantine", logger.Error(applyErr))
		applyErr = fmt.Errorf("score %s: %w", job.Ticker, applyErr)
	}

	status := "ok"
	switch {
	case persistErr != nil || applyErr != nil:
		status = "error"
	case result.Skipped:
		status = "skipped"
	case !result.Usable():
		status = "unusable"
	}
	j.metrics.RecordJob(status)
	j.metrics.RecordLatency("scrape_job", time.Since(start).Seconds())

	done("scrape job done",
		logger.String("status", status),
		logger.String("expiration", expiration),
		logger.Float64("price", result.Price),
		logger.Float64("mean_iv", result.MeanIV),
		logger.Int64("score", verdict.Score),
	)
	return errors.Join(persistErr, applyErr)
}
