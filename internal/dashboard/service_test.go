package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

type stubAggregator struct {
	users    int64
	orders   int64
	revenue  decimal.Decimal
	byStatus []StatusCount
	top      []TopProduct
	calls    int
}

func (s *stubAggregator) CountUsers(context.Context) (int64, error) {
	s.calls++
	return s.users, nil
}

func (s *stubAggregator) CountOrders(context.Context) (int64, error) { return s.orders, nil }

func (s *stubAggregator) RevenueSum(context.Context) (decimal.Decimal, error) {
	return s.revenue, nil
}

func (s *stubAggregator) OrdersByStatus(context.Context) ([]StatusCount, error) {
	return s.byStatus, nil
}

func (s *stubAggregator) TopProducts(context.Context, int) ([]TopProduct, error) {
	return s.top, nil
}

type stubCatalog struct {
	rows []models.Product
}

func (s *stubCatalog) LowStockProducts(context.Context, int, int) ([]models.Product, error) {
	return s.rows, nil
}

type memoryCache struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) CacheKey(name string) string { return "sf:cache:" + name }

func newTestService(t *testing.T, repo *stubAggregator, cache *memoryCache) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "dashboard-test", Output: io.Discard})
	svc, err := NewService(
		repo,
		&stubCatalog{},
		cache,
		config.DashboardConfig{CacheTTL: 5 * time.Minute, LowStockLimit: 3},
		logg,
	)
	require.NoError(t, err)
	return svc
}

func TestSnapshotComputesAndCaches(t *testing.T) {
	t.Parallel()

	repo := &stubAggregator{
		users:   7,
		orders:  3,
		revenue: decimal.RequireFromString("45000"),
		byStatus: []StatusCount{
			{Status: enums.OrderStatusPaid, Count: 2},
			{Status: enums.OrderStatusPendingPayment, Count: 1},
		},
		top: []TopProduct{{ProductID: "p1", Name: "Aura ring", UnitsSold: 5}},
	}
	cache := newMemoryCache()
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 7, snapshot.UserCount)
	require.True(t, snapshot.Revenue.Equal(decimal.RequireFromString("45000")))
	require.Equal(t, 1, repo.calls)

	key := cache.CacheKey("dashboard")
	require.Contains(t, cache.values, key)
	require.Equal(t, 5*time.Minute, cache.ttls[key])

	// second read is served from the cache without touching the database
	again, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 7, again.UserCount)
	require.Equal(t, 1, repo.calls)
}

func TestSnapshotDiscardsCorruptCache(t *testing.T) {
	t.Parallel()

	repo := &stubAggregator{users: 2}
	cache := newMemoryCache()
	cache.values[cache.CacheKey("dashboard")] = "{not json"
	svc := newTestService(t, repo, cache)

	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, snapshot.UserCount)
	require.Equal(t, 1, repo.calls)

	var rewritten Snapshot
	require.NoError(t, json.Unmarshal([]byte(cache.values[cache.CacheKey("dashboard")]), &rewritten))
	require.EqualValues(t, 2, rewritten.UserCount)
}

func TestRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	repo := &stubAggregator{users: 1}
	cache := newMemoryCache()
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	repo.users = 9
	fresh, err := svc.Refresh(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 9, fresh.UserCount)
	require.Equal(t, 2, repo.calls)
}
