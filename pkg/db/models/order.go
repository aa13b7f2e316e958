package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierluna/storefront-backend/pkg/enums"
)

// Order is the durable result of a successful checkout. Total is immutable
// once the row is created; status transitions happen elsewhere.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status     enums.OrderStatus `gorm:"column:status;not null;default:'pending_payment'"`
	Total      decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null"`
	Address    string            `gorm:"column:address;not null"`
	City       string            `gorm:"column:city;not null"`
	PostalCode string            `gorm:"column:postal_code;not null"`
	Phone      string            `gorm:"column:phone;not null"`
	Lines      []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
