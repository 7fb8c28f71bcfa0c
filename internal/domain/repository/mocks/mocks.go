// Package mocks provides testify doubles for the domain repository contracts.
package mocks

import (
	"context"
	"time"

	"ChainPull/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MarketData struct {
	mock.Mock
}

func (m *MarketData) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MarketData) OptionChain(ctx context.Context, ticker, expiration, optionType string) ([]models.OptionContract, error) {
	args := m.Called(ctx, ticker, expiration, optionType)
	chain, _ := args.Get(0).([]models.OptionContract)
	return chain, args.Error(1)
}

func (m *MarketData) Expirations(ctx context.Context, ticker string) ([]string, error) {
	args := m.Called(ctx, ticker)
	dates, _ := args.Get(0).([]string)
	return dates, args.Error(1)
}

type Calendar struct {
	mock.Mock
}

func (m *Calendar) IsOpen(t time.Time) bool {
	return m.Called(t).Bool(0)
}

func (m *Calendar) Today(t time.Time) string {
	return m.Called(t).String(0)
}

func (m *Calendar) SecondsUntil(expiration string, t time.Time) (int64, error) {
	args := m.Called(expiration, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Calendar) MarketSecondsUntil(expiration string, t time.Time) (int64, error) {
	args := m.Called(expiration, t)
	return args.Get(0).(int64), args.Error(1)
}

type Universe struct {
	mock.Mock
}

func (m *Universe) Tickers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tickers, _ := args.Get(0).([]string)
	return tickers, args.Error(1)
}

type SnapshotStore struct {
	mock.Mock
}

func (m *SnapshotStore) Init(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SnapshotStore) Store(ctx context.Context, s *models.Snapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *SnapshotStore) StoreBatch(ctx context.Context, snaps []*models.Snapshot) error {
	return m.Called(ctx, snaps).Error(0)
}

func (m *SnapshotStore) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SnapshotStore) Close() error {
	return m.Called().Error(0)
}

type SnapshotReader struct {
	mock.Mock
}

func (m *SnapshotReader) QuerySnapshots(ctx context.Context, ticker, expiration string, timestamp int64) ([]*models.Snapshot, error) {
	args := m.Called(ctx, ticker, expiration, timestamp)
	snaps, _ := args.Get(0).([]*models.Snapshot)
	return snaps, args.Error(1)
}

func (m *SnapshotReader) Expirations(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	dates, _ := args.Get(0).([]string)
	return dates, args.Error(1)
}

func (m *SnapshotReader) Timestamps(ctx context.Context, expiration string) ([]int64, error) {
	args := m.Called(ctx, expiration)
	ts, _ := args.Get(0).([]int64)
	return ts, args.Error(1)
}
