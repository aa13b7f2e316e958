package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierluna/storefront-backend/pkg/enums"
)

// Product represents a catalog listing.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                `gorm:"column:name;not null"`
	Description *string               `gorm:"column:description"`
	Category    enums.ProductCategory `gorm:"column:category"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	PromoPrice  *decimal.Decimal      `gorm:"column:promo_price;type:numeric(10,2)"`
	OnPromo     bool                  `gorm:"column:on_promo;not null;default:false"`
	Stock       int                   `gorm:"column:stock;not null;default:0"`
	ImagePath   *string               `gorm:"column:image_path"`
	IsActive    bool                  `gorm:"column:is_active;not null;default:true"`
	Variants    []Variant             `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is the promo price while the promo flag is set and a promo
// price exists, the base price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.OnPromo && p.PromoPrice != nil {
		return *p.PromoPrice
	}
	return p.Price
}
