package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
)

const snapshotColumns = "scraper_timestamp, ticker, expiration, price, seconds_to_expiration, market_seconds_to_expiration, mean_iv, median_iv, near_the_money, options, created_at"

// ClickHouseSnapshotStore persists snapshots to a ClickHouse table and
// serves the read-only query API from it.
type ClickHouseSnapshotStore struct {
	db    *sql.DB
	table string
}

var (
	_ repository.SnapshotStore  = (*ClickHouseSnapshotStore)(nil)
	_ repository.SnapshotReader = (*ClickHouseSnapshotStore)(nil)
)

// NewClickHouseSnapshotStore creates ClickHouse storage for table (optionally db-qualified).
func NewClickHouseSnapshotStore(db *sql.DB, table string) *ClickHouseSnapshotStore {
	return &ClickHouseSnapshotStore{db: db, table: table}
}

// Init creates the snapshot table when missing.
func (s *ClickHouseSnapshotStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	scraper_timestamp Int64,
	ticker LowCardinality(String),
	expiration String,
	price Float64,
	seconds_to_expiration Int64,
	market_seconds_to_expiration Int64,
	mean_iv Float64,
	median_iv Float64,
	near_the_money String,
	options String,
	created_at DateTime64(3)
) ENGINE = ReplacingMergeTree
ORDER BY (ticker, expiration, scraper_timestamp)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Store(ctx context.Context, snap *models.Snapshot) error {
	return s.StoreBatch(ctx, []*models.Snapshot{snap})
}

// StoreBatch inserts snapshots using multi-row VALUES, 2000 rows per statement.
func (s *ClickHouseSnapshotStore) StoreBatch(ctx context.Context, snaps []*models.Snapshot) error {
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		end := min(start+chunkSize, len(snaps))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, snap := range snaps[start:end] {
			if snap == nil || snap.Ticker == "" {
				continue
			}
			options, err := json.Marshal(snap.Options)
			if err != nil {
				return fmt.Errorf("marshal options for %s: %w", snap.Ticker, err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				snap.ScraperTimestamp,
				snap.Ticker,
				snap.Expiration,
				snap.Price,
				snap.SecondsToExpiration,
				snap.MarketSecondsToExpiration,
				snap.MeanIV,
				snap.MedianIV,
				strings.Join(snap.NearTheMoney, " "),
				string(options),
				snap.CreatedAt,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, snapshotColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

// QuerySnapshots returns the snapshots of one chain ordered by cycle.
// A zero timestamp selects every cycle.
func (s *ClickHouseSnapshotStore) QuerySnapshots(ctx context.Context, ticker, expiration string, timestamp int64) ([]*models.Snapshot, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE ticker = ? AND expiration = ?", snapshotColumns, s.table)
	args := []interface{}{ticker, expiration}
	if timestamp > 0 {
		q += " AND scraper_timestamp = ?"
		args = append(args, timestamp)
	}
	q += " ORDER BY scraper_timestamp"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		var (
			snap    models.Snapshot
			ntm     string
			options string
			created time.Time
		)
		if err := rows.Scan(
			&snap.ScraperTimestamp,
			&snap.Ticker,
			&snap.Expiration,
			&snap.Price,
			&snap.SecondsToExpiration,
			&snap.MarketSecondsToExpiration,
			&snap.MeanIV,
			&snap.MedianIV,
			&ntm,
			&options,
			&created,
		); err != nil {
			return nil, err
		}
		if ntm != "" {
			snap.NearTheMoney = strings.Fields(ntm)
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &snap.Options); err != nil {
				return nil, fmt.Errorf("decode options for %s: %w", snap.Ticker, err)
			}
		}
		snap.CreatedAt = created
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// Expirations lists distinct stored expiration dates in ascending order.
func (s *ClickHouseSnapshotStore) Expirations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT expiration FROM %s ORDER BY expiration", s.table))
	if err != nil {
		return nil, fmt.Errorf("query expirations: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Timestamps lists distinct cycle timestamps stored for an expiration.
func (s *ClickHouseSnapshotStore) Timestamps(ctx context.Context, expiration string) ([]int64, error) {
	q := fmt.Sprintf("SELECT DISTINCT scraper_timestamp FROM %s WHERE expiration = ? ORDER BY scraper_timestamp", s.table)
	rows, err := s.db.QueryContext(ctx, q, expiration)
	if err != nil {
		return nil, fmt.Errorf("query timestamps: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *ClickHouseSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSnapshotStore) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
