package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity row the storefront consumes. Registration,
// login and profile editing live in the external identity service.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;uniqueIndex;not null"`
	IsStaff   bool      `gorm:"column:is_staff;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
