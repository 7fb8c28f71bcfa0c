package repository

import (
	"context"
	"errors"
	"time"

	"ChainPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

// ErrNoData is returned by MarketData when the source has nothing for the request.
var ErrNoData = errors.New("market data: no data")

// MarketData is the brokerage contract the pipeline depends on.
type MarketData interface {
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	// OptionChain returns contracts of the given type; an empty type returns calls and puts.
	OptionChain(ctx context.Context, ticker, expiration, optionType string) ([]models.OptionContract, error)
	Expirations(ctx context.Context, ticker string) ([]string, error)
}

// Calendar answers exchange session questions.
type Calendar interface {
	IsOpen(t time.Time) bool
	Today(t time.Time) string
	SecondsUntil(expiration string, t time.Time) (int64, error)
	MarketSecondsUntil(expiration string, t time.Time) (int64, error)
}

// Universe supplies the ordered, deduplicated ticker list of a cycle.
type Universe interface {
	Tickers(ctx context.Context) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, s *models.Snapshot) error
	PublishBatch(ctx context.Context, snaps []*models.Snapshot) error
	Close() error
}

type RecordWriter interface {
	Write(ctx context.Context, cycle int64, record []string) error
	Close() error
}

type SnapshotStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.Snapshot) error
	StoreBatch(ctx context.Context, snaps []*models.Snapshot) error
	Health(ctx context.Context) error
	Close() error
}

// SnapshotReader backs the read-only query API.
type SnapshotReader interface {
	QuerySnapshots(ctx context.Context, ticker, expiration string, timestamp int64) ([]*models.Snapshot, error)
	Expirations(ctx context.Context) ([]string, error)
	Timestamps(ctx context.Context, expiration string) ([]int64, error)
}

type Metrics interface {
	RecordMessageSent(backend, ticker string)
	RecordError(kind string)
	RecordLastPrice(ticker string, price float64)
	RecordLatency(op string, seconds float64)
	RecordJob(result string)
	RecordQuarantineScore(rule string, score int64)
	RecordEnqueued(count int, skipped int)
	RecordQueueDepth(pending, retrying, dead int64)
}
