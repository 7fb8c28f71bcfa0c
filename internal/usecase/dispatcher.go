package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	drepo "ChainPull/internal/domain/repository"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/queue"
	"ChainPull/pkg/retry"
)

var (
	ErrMarketClosed    = errors.New("market is closed")
	ErrCycleInProgress = errors.New("another dispatch cycle is in progress")
)

const (
	dispatchLockKey     = "lock:dispatch"
	defaultDispatchLock = 2 * time.Minute
)

// QuarantineSource reports the tickers to leave out of a cycle.
type QuarantineSource interface {
	QuarantinedTickers(ctx context.Context) (models.TickerSet, error)
}

type DispatchOptions struct {
	// Force ignores market hours and quarantine.
	Force bool
}

// CycleReport summarises one dispatch.
type CycleReport struct {
	Timestamp int64
	Universe  int
	Enqueued  []string
	Skipped   []string
	Failed    []string
}

// Dispatcher enqueues one scrape job per eligible ticker.
type Dispatcher struct {
	universe   drepo.Universe
	calendar   drepo.Calendar
	quarantine QuarantineSource
	queue      queue.Publisher
	locker     cache.Locker
	policy     retry.Policy
	metrics    drepo.Metrics
	log        *logger.Logger
	now        func() time.Time
	lockTTL    time.Duration
}

func NewDispatcher(
	universe drepo.Universe,
	calendar drepo.Calendar,
	quarantine QuarantineSource,
	q queue.Publisher,
	locker cache.Locker,
	policy retry.Policy,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		universe:   universe,
		calendar:   calendar,
		quarantine: quarantine,
		queue:      q,
		locker:     locker,
		policy:     policy,
		metrics:    metrics,
		log:        log.With(logger.String("component", "dispatcher")),
		now:        time.Now,
		lockTTL:    defaultDispatchLock,
	}
}

// Dispatch runs one cycle. The universe and the quarantine set are read
// once, and every job of the cycle carries the same timestamp.
func (d *Dispatcher) Dispatch(ctx context.Context, opts DispatchOptions) (*CycleReport, error) {
	now := d.now()
	if !opts.Force && !d.calendar.IsOpen(now) {
		return nil, ErrMarketClosed
	}

	token, ok, err := d.locker.TryLock(ctx, dispatchLockKey, d.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, ErrCycleInProgress
	}
	defer func() {
		if err := d.locker.Unlock(context.WithoutCancel(ctx), dispatchLockKey, token); err != nil {
			d.log.Warn("release dispatch lock", logger.Error(err))
		}
	}()

	tickers, err := d.universe.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	var quarantined models.TickerSet
	if !opts.Force {
		quarantined, err = d.quarantine.QuarantinedTickers(ctx)
		if err != nil {
			return nil, fmt.Errorf("load quarantine: %w", err)
		}
	}

	report := &CycleReport{Timestamp: now.Unix(), Universe: len(tickers)}
	for _, ticker := range tickers {
		if quarantined.Contains(ticker) {
			report.Skipped = append(report.Skipped, ticker)
			continue
		}
		job := models.ScrapeJob{Ticker: ticker, Timestamp: report.Timestamp, Force: opts.Force}
		if err := d.queue.Publish(ctx, ScrapeTickerJobType, job, &d.policy); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			d.log.Error("enqueue scrape job", logger.String("ticker", ticker), logger.Error(err))
			report.Failed = append(report.Failed, ticker)
			continue
		}
		report.Enqueued = append(report.Enqueued, ticker)
	}

	d.metrics.RecordEnqueued(len(report.Enqueued), len(report.Skipped))
	d.log.Info("cycle dispatched",
		logger.Int64("timestamp", report.Timestamp),
		logger.Int("universe", report.Universe),
		logger.Int("enqueued", len(report.Enqueued)),
		logger.Int("quarantined", len(report.Skipped)),
		logger.Int("failed", len(report.Failed)),
		logger.Bool("force", opts.Force),
	)
	return report, nil
}
