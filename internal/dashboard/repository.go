package dashboard

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
)

// StatusCount is one bucket of the orders-by-status breakdown.
type StatusCount struct {
	Status enums.OrderStatus `json:"status"`
	Count  int64             `json:"count"`
}

// TopProduct is one row of the units-sold ranking.
type TopProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitsSold int64  `json:"units_sold"`
}

// Repository computes the staff aggregates straight from the database.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the aggregate queries to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CountUsers returns the total number of registered users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountOrders returns the total number of orders ever placed.
func (r *Repository) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error
	return count, err
}

// RevenueSum totals all non-canceled orders.
func (r *Repository) RevenueSum(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Revenue decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0) AS revenue").
		Where("status <> ?", enums.OrderStatusCanceled).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Revenue, nil
}

// OrdersByStatus breaks the order count down per status.
func (r *Repository) OrdersByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Find(&rows).Error
	return rows, err
}

// TopProducts ranks products by total units sold across all order lines.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []TopProduct
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Select("product_id, name, SUM(quantity) AS units_sold").
		Group("product_id").
		Group("name").
		Order("units_sold DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
