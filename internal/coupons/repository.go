package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
)

// Repository encapsulates coupon persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode looks a coupon up case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = LOWER(?)", code).
		First(&coupon).
		Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// HasRedemption reports whether the user already consumed the coupon.
func (r *Repository) HasRedemption(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateRedemption records that the user consumed the coupon. A replayed
// insert is a no-op, so two concurrent checkouts racing on the composite key
// cannot abort each other's transaction.
func (r *Repository) CreateRedemption(ctx context.Context, couponID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CouponRedemption{CouponID: couponID, UserID: userID}).
		Error
}

// DeleteRedemptionsByCoupon clears all usage rows for the coupon.
func (r *Repository) DeleteRedemptionsByCoupon(ctx context.Context, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		Delete(&models.CouponRedemption{}).
		Error
}
