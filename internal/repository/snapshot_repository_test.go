package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChainPull/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = "chainpull.option_snapshots"

func newMockStore(t *testing.T) (*ClickHouseSnapshotStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClickHouseSnapshotStore(db, testTable), mock
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		ScraperTimestamp:          1760882400,
		Ticker:                    "SPY",
		Expiration:                "2026-10-20",
		Price:                     438.71,
		SecondsToExpiration:       93600,
		MarketSecondsToExpiration: 23400,
		MeanIV:                    0.21,
		MedianIV:                  0.2,
		NearTheMoney:              []string{"438C", "438P"},
		CreatedAt:                 time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC),
		Options: []models.OptionContract{
			{StrikePrice: 438, Type: models.OptionTypeCall, Volume: 10, OpenInterest: 100, ImpliedVolatility: 0.21},
		},
	}
}

func TestInit(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS chainpull\.option_snapshots`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBatch(t *testing.T) {
	s, mock := newMockStore(t)
	snap := sampleSnapshot()

	mock.ExpectExec(`INSERT INTO chainpull\.option_snapshots \(scraper_timestamp, .*\) VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?\)$`).
		WithArgs(
			snap.ScraperTimestamp, "SPY", "2026-10-20", 438.71, int64(93600), int64(23400), 0.21, 0.2,
			"438C 438P",
			`[{"strike_price":438,"type":"call","volume":10,"open_interest":100,"implied_volatility":0.21}]`,
			snap.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// nil and tickerless rows are skipped
	err := s.StoreBatch(context.Background(), []*models.Snapshot{snap, nil, {}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBatch_Empty(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.StoreBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Error(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO`).WillReturnError(errors.New("table is read-only"))

	err := s.Store(context.Background(), sampleSnapshot())
	assert.ErrorContains(t, err, "read-only")
}

func TestQuerySnapshots(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"scraper_timestamp", "ticker", "expiration", "price", "seconds_to_expiration",
		"market_seconds_to_expiration", "mean_iv", "median_iv", "near_the_money", "options", "created_at",
	}).AddRow(int64(1760882400), "SPY", "2026-10-20", 438.71, int64(93600), int64(23400), 0.21, 0.2,
		"438C 438P", `[{"strike_price":438,"type":"put","volume":5,"open_interest":7,"implied_volatility":0.3}]`, created)

	mock.ExpectQuery(`SELECT .* FROM chainpull\.option_snapshots WHERE ticker = \? AND expiration = \? AND scraper_timestamp = \? ORDER BY scraper_timestamp`).
		WithArgs("SPY", "2026-10-20", int64(1760882400)).
		WillReturnRows(rows)

	got, err := s.QuerySnapshots(context.Background(), "SPY", "2026-10-20", 1760882400)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"438C", "438P"}, got[0].NearTheMoney)
	require.Len(t, got[0].Options, 1)
	assert.Equal(t, models.OptionTypePut, got[0].Options[0].Type)
	assert.Equal(t, int64(7), got[0].Options[0].OpenInterest)
	assert.Equal(t, created, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuerySnapshots_AllCycles(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`WHERE ticker = \? AND expiration = \? ORDER BY scraper_timestamp`).
		WithArgs("QQQ", "2026-10-20").
		WillReturnRows(sqlmock.NewRows([]string{"scraper_timestamp"}))

	got, err := s.QuerySnapshots(context.Background(), "QQQ", "2026-10-20", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirationsAndTimestamps(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT DISTINCT expiration FROM chainpull\.option_snapshots ORDER BY expiration`).
		WillReturnRows(sqlmock.NewRows([]string{"expiration"}).AddRow("2026-10-20").AddRow("2026-10-23"))
	mock.ExpectQuery(`SELECT DISTINCT scraper_timestamp FROM chainpull\.option_snapshots WHERE expiration = \?`).
		WithArgs("2026-10-20").
		WillReturnRows(sqlmock.NewRows([]string{"scraper_timestamp"}).AddRow(int64(100)).AddRow(int64(200)))

	exps, err := s.Expirations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-20", "2026-10-23"}, exps)

	ts, err := s.Timestamps(context.Background(), "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, ts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
