package usecase

import (
	"context"
	"strconv"
	"time"

	"ChainPull/internal/domain/models"
	drepo "ChainPull/internal/domain/repository"
	"ChainPull/internal/service/cache"
)

// SnapshotQuery serves the read-only query API. Distinct expirations and
// timestamps are cached for ttl.
type SnapshotQuery struct {
	reader     drepo.SnapshotReader
	ttl        time.Duration
	expCache   *cache.TTLCache[[]string]
	stampCache *cache.TTLCache[[]int64]
}

func NewSnapshotQuery(reader drepo.SnapshotReader, ttl time.Duration) *SnapshotQuery {
	return &SnapshotQuery{
		reader:     reader,
		ttl:        ttl,
		expCache:   cache.NewTTLCache[[]string](),
		stampCache: cache.NewTTLCache[[]int64](),
	}
}

// OptionChains groups the stored snapshots of one chain by cycle timestamp.
func (q *SnapshotQuery) OptionChains(ctx context.Context, ticker, expiration string, timestamp int64) (*models.OptionChainsResponse, error) {
	snaps, err := q.reader.QuerySnapshots(ctx, ticker, expiration, timestamp)
	if err != nil {
		return nil, err
	}

	resp := &models.OptionChainsResponse{
		Ticker:     ticker,
		Expiration: expiration,
		Data:       make(map[string]models.ChainPoint, len(snaps)),
	}
	for _, s := range snaps {
		point := models.ChainPoint{
			Price:   s.Price,
			Strikes: make(map[string]map[string]models.StrikeActivity),
		}
		for _, o := range s.Options {
			strike := strconv.FormatFloat(o.StrikePrice, 'f', -1, 64)
			sides, ok := point.Strikes[strike]
			if !ok {
				sides = make(map[string]models.StrikeActivity, 2)
				point.Strikes[strike] = sides
			}
			sides[o.Type] = models.StrikeActivity{Volume: o.Volume, OpenInterest: o.OpenInterest}
		}
		resp.Data[strconv.FormatInt(s.ScraperTimestamp, 10)] = point
	}
	resp.Count = len(resp.Data)
	return resp, nil
}

func (q *SnapshotQuery) Expirations(ctx context.Context) ([]string, error) {
	return q.expCache.GetOrLoad("all", q.ttl, func() ([]string, error) {
		return q.reader.Expirations(ctx)
	})
}

func (q *SnapshotQuery) Timestamps(ctx context.Context, expiration string) ([]int64, error) {
	return q.stampCache.GetOrLoad(expiration, q.ttl, func() ([]int64, error) {
		return q.reader.Timestamps(ctx, expiration)
	})
}
