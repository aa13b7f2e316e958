package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

const (
	cacheName        = "dashboard"
	topProductsLimit = 5
	lowStockRows     = 10
)

type aggregator interface {
	CountUsers(ctx context.Context) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	RevenueSum(ctx context.Context) (decimal.Decimal, error)
	OrdersByStatus(ctx context.Context) ([]StatusCount, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

type lowStockLister interface {
	LowStockProducts(ctx context.Context, threshold, limit int) ([]models.Product, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(name string) string
}

// LowStockItem is one scarce product surfaced on the dashboard.
type LowStockItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

// Snapshot is the cached staff dashboard payload.
type Snapshot struct {
	UserCount      int64           `json:"user_count"`
	OrderCount     int64           `json:"order_count"`
	Revenue        decimal.Decimal `json:"revenue"`
	OrdersByStatus []StatusCount   `json:"orders_by_status"`
	TopProducts    []TopProduct    `json:"top_products"`
	LowStock       []LowStockItem  `json:"low_stock"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Service serves the staff dashboard, caching snapshots in Redis for the
// configured TTL and recomputing from the database on a miss.
type Service struct {
	repo    aggregator
	catalog lowStockLister
	cache   cacheStore
	cfg     config.DashboardConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the dashboard service.
func NewService(repo aggregator, catalog lowStockLister, cache cacheStore, cfg config.DashboardConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("aggregate repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		cfg:     cfg,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Snapshot returns the dashboard, served from cache when fresh. A cache read
// failure degrades to a recompute rather than an error.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	key := s.cache.CacheKey(cacheName)
	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		var cached Snapshot
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		s.logg.Warn(ctx, "discarding unreadable dashboard cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache read failed")
	}

	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot from the database and rewrites the cache.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snapshot, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode dashboard snapshot")
	}
	// Serving a fresh snapshot beats failing on a cache write.
	if err := s.cache.Set(ctx, s.cache.CacheKey(cacheName), payload, s.cfg.CacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache write failed")
	}

	return snapshot, nil
}

func (s *Service) compute(ctx context.Context) (*Snapshot, error) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	ordersTotal, err := s.repo.CountOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	revenue, err := s.repo.RevenueSum(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}
	byStatus, err := s.repo.OrdersByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "group orders by status")
	}
	top, err := s.repo.TopProducts(ctx, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank top products")
	}
	scarce, err := s.catalog.LowStockProducts(ctx, s.cfg.LowStockLimit, lowStockRows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}

	lowStock := make([]LowStockItem, 0, len(scarce))
	for _, product := range scarce {
		lowStock = append(lowStock, LowStockItem{
			ProductID: product.ID.String(),
			Name:      product.Name,
			Stock:     product.Stock,
		})
	}

	return &Snapshot{
		UserCount:      users,
		OrderCount:     ordersTotal,
		Revenue:        revenue,
		OrdersByStatus: byStatus,
		TopProducts:    top,
		LowStock:       lowStock,
		GeneratedAt:    s.now(),
	}, nil
}
