package usecase

import (
	"context"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	drepo "ChainPull/internal/domain/repository"
)

const (
	BackendClickHouse = "clickhouse"
	BackendKafka      = "kafka"
	BackendFile       = "file"
)

// SnapshotProcessor routes finished scrapes to the configured backend.
type SnapshotProcessor struct {
	store   drepo.SnapshotStore
	pub     drepo.Publisher
	records drepo.RecordWriter
	metrics drepo.Metrics
	backend string
}

// NewSnapshotProcessor creates a new SnapshotProcessor instance. Only the
// sink matching backend needs to be non-nil.
func NewSnapshotProcessor(
	store drepo.SnapshotStore,
	pub drepo.Publisher,
	records drepo.RecordWriter,
	metrics drepo.Metrics,
	backend string,
) *SnapshotProcessor {
	return &SnapshotProcessor{
		store:   store,
		pub:     pub,
		records: records,
		metrics: metrics,
		backend: backend,
	}
}

// Backend returns the configured backend name.
func (p *SnapshotProcessor) Backend() string { return p.backend }

// Process persists one result under the cycle timestamp.
func (p *SnapshotProcessor) Process(ctx context.Context, r *models.ScrapeResult, cycle int64) error {
	if r == nil {
		return fmt.Errorf("scrape result is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendClickHouse:
		err = p.store.Store(ctx, r.Snapshot(cycle))
	case BackendKafka:
		err = p.pub.Publish(ctx, r.Snapshot(cycle))
	case BackendFile:
		err = p.records.Write(ctx, cycle, r.Record())
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("persist")
		return fmt.Errorf("persist %s: %w", r.Ticker, err)
	}

	p.metrics.RecordMessageSent(p.backend, r.Ticker)
	p.metrics.RecordLastPrice(r.Ticker, r.Price)
	p.metrics.RecordLatency("persist", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
	if p.records != nil {
		_ = p.records.Close()
	}
}
