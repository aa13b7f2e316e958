package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon grants a percentage discount inside its validity window. Each user
// may redeem a coupon at most once; redemptions are tracked as join rows.
type Coupon struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code            string             `gorm:"column:code;uniqueIndex;not null"`
	DiscountPercent int                `gorm:"column:discount_percent;not null"`
	ValidFrom       time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil      time.Time          `gorm:"column:valid_until;not null"`
	Active          bool               `gorm:"column:active;not null;default:true"`
	Redemptions     []CouponRedemption `gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponRedemption records that a user has consumed a coupon.
type CouponRedemption struct {
	CouponID   uuid.UUID `gorm:"column:coupon_id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	RedeemedAt time.Time `gorm:"column:redeemed_at;autoCreateTime"`
}
