package model

import (
	"time"

	"github.com/google/uuid"
)

// Address is a shipping destination owned by a user. Order creation verifies
// ownership before reserving any stock.
type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Line1      string    `gorm:"not null"`
	Line2      *string
	City       string `gorm:"not null"`
	Region     string `gorm:"not null"` // shipping-rate region code
	PostalCode string
	Country    string `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides GORM's default pluralization (addresss → addresses).
func (Address) TableName() string { return "addresses" }
