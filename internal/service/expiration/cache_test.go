package expiration

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
	"ChainPull/internal/domain/repository/mocks"
	"ChainPull/pkg/cache"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type resolverMock struct {
	mock.Mock
}

func (m *resolverMock) NextExpiration(ctx context.Context, ticker string) (string, error) {
	args := m.Called(ctx, ticker)
	return args.String(0), args.Error(1)
}

type failingStore struct {
	cache.HashStore
}

func (failingStore) HGet(context.Context, string, string) (string, error) {
	return "", errors.New("connection refused")
}

func newCache(store cache.HashStore, r Resolver, attempts int) *Cache {
	return NewCache(store,
		NewClassifier([]string{"SPY"}, []string{"IWM"}),
		r,
		retry.Constant(attempts, 0),
		logger.NewNop(),
	)
}

func TestResolve_CachesStandardTicker(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "AAPL").Return("2026-10-23", nil).Once()
	c := newCache(store, r, 3)

	first, found, err := c.Resolve(ctx, "AAPL", nil)
	require.NoError(t, err)
	require.True(t, found)

	second, found, err := c.Resolve(ctx, "AAPL", nil)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "2026-10-23", first)
	assert.Equal(t, first, second)
	r.AssertNumberOfCalls(t, "NextExpiration", 1)

	cached, err := store.HGet(ctx, HashKey, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-23", cached)
}

func TestResolve_DailyNeverCaches(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	require.NoError(t, store.HSet(ctx, HashKey, "SPY", "2020-01-01"))

	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "SPY").Return("2026-10-20", nil)
	c := newCache(store, r, 3)

	for i := 0; i < 2; i++ {
		date, found, err := c.Resolve(ctx, "SPY", nil)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2026-10-20", date)
	}
	r.AssertNumberOfCalls(t, "NextExpiration", 2)

	cached, err := store.HGet(ctx, HashKey, "SPY")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", cached, "daily entries are neither read nor written")
}

func TestResolve_SemiWeeklyNotWritten(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "IWM").Return("2026-10-21", nil)
	c := newCache(store, r, 3)

	date, found, err := c.Resolve(ctx, "IWM", nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2026-10-21", date)

	_, err = store.HGet(ctx, HashKey, "IWM")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestResolve_QuarantinedNotFound(t *testing.T) {
	r := &resolverMock{}
	c := newCache(cache.NewMemoryCache(), r, 3)

	date, found, err := c.Resolve(context.Background(), "AAPL", models.NewTickerSet("AAPL"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, date)
	r.AssertNotCalled(t, "NextExpiration", mock.Anything, mock.Anything)
}

func TestResolve_ExhaustionIsNotFound(t *testing.T) {
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "XYZ").Return("", repository.ErrNoData)
	c := newCache(cache.NewMemoryCache(), r, 4)

	_, found, err := c.Resolve(context.Background(), "XYZ", nil)
	require.NoError(t, err)
	assert.False(t, found)
	r.AssertNumberOfCalls(t, "NextExpiration", 4)
}

func TestResolve_RecoversWithinBudget(t *testing.T) {
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "AAPL").Return("", errors.New("timeout")).Twice()
	r.On("NextExpiration", mock.Anything, "AAPL").Return("2026-10-23", nil).Once()
	c := newCache(cache.NewMemoryCache(), r, 3)

	date, found, err := c.Resolve(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2026-10-23", date)
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	r := &resolverMock{}
	c := newCache(failingStore{}, r, 3)

	_, _, err := c.Resolve(context.Background(), "AAPL", nil)
	assert.Error(t, err)
	r.AssertNotCalled(t, "NextExpiration", mock.Anything, mock.Anything)
}

func TestResolve_ContextCancelled(t *testing.T) {
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "AAPL").Return("", errors.New("timeout"))
	c := NewCache(cache.NewMemoryCache(), NewClassifier(nil, nil), r, retry.Constant(10, time.Hour), logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, found, err := c.Resolve(ctx, "AAPL", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, found)
}

func TestPurge_EmptiesCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	require.NoError(t, store.HSet(ctx, HashKey, "AAPL", "2026-10-23"))
	require.NoError(t, store.HSet(ctx, HashKey, "MSFT", "2026-10-30"))
	c := newCache(store, &resolverMock{}, 1)

	require.NoError(t, c.Purge(ctx))

	all, err := c.AllCached(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPurgeIfStale(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	require.NoError(t, store.HSet(ctx, HashKey, "AAPL", "2026-10-23"))
	c := newCache(store, &resolverMock{}, 1)

	purged, err := c.PurgeIfStale(ctx, "2026-10-22")
	require.NoError(t, err)
	assert.False(t, purged)

	purged, err = c.PurgeIfStale(ctx, "2026-10-23")
	require.NoError(t, err)
	assert.True(t, purged)

	all, err := c.AllCached(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPopulate(t *testing.T) {
	r := &resolverMock{}
	r.On("NextExpiration", mock.Anything, "AAPL").Return("2026-10-23", nil)
	r.On("NextExpiration", mock.Anything, "XYZ").Return("", repository.ErrNoData)
	c := newCache(cache.NewMemoryCache(), r, 2)

	report, err := c.Populate(context.Background(), []string{"AAPL", "XYZ", "BAD"}, models.NewTickerSet("BAD"))
	require.NoError(t, err)
	assert.Equal(t, PopulateReport{Resolved: 1, NotFound: 2}, report)
}

func TestChainResolver_NextStrictlyAfterToday(t *testing.T) {
	data := &mocks.MarketData{}
	cal := &mocks.Calendar{}
	now := time.Date(2026, 10, 23, 14, 0, 0, 0, time.UTC)

	data.On("Expirations", mock.Anything, "AAPL").Return([]string{"2026-11-20", "2026-10-23", "2026-10-30", "2026-10-16"}, nil)
	cal.On("Today", now).Return("2026-10-23")

	r := NewChainResolver(data, cal)
	r.now = func() time.Time { return now }

	date, err := r.NextExpiration(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-30", date)
}

func TestChainResolver_NothingAfterToday(t *testing.T) {
	data := &mocks.MarketData{}
	cal := &mocks.Calendar{}
	data.On("Expirations", mock.Anything, "AAPL").Return([]string{"2026-10-16"}, nil)
	cal.On("Today", mock.Anything).Return("2026-10-23")

	_, err := NewChainResolver(data, cal).NextExpiration(context.Background(), "AAPL")
	assert.ErrorIs(t, err, repository.ErrNoData)
}

func TestClassifier(t *testing.T) {
	c := NewClassifier([]string{"SPY", "QQQ"}, []string{"IWM"})
	assert.Equal(t, models.CategoryDaily, c.Classify("SPY"))
	assert.Equal(t, models.CategorySemiWeekly, c.Classify("IWM"))
	assert.Equal(t, models.CategoryStandard, c.Classify("AAPL"))
}
