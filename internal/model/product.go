package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog record plus the two stock counters the engine owns.
// OnHandStock and ReservedStock are mutated exclusively through
// service.StockService inside a locked transaction — no other code path may
// write them. Available stock is derived, never stored.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU         string    `gorm:"uniqueIndex;not null"`
	Name        string    `gorm:"index;not null"`
	Description *string
	Category    string          `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	UnitCost    *decimal.Decimal `gorm:"type:decimal(10,2)"`
	IsImported  bool            `gorm:"not null;default:false"`

	OnHandStock   int `gorm:"not null;default:0"`
	ReservedStock int `gorm:"not null;default:0"`

	ReorderLevel      int `gorm:"not null;default:10"`
	LowStockThreshold int `gorm:"not null;default:5"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailableStock is what can still be reserved: on-hand minus reserved.
func (p *Product) AvailableStock() int { return p.OnHandStock - p.ReservedStock }
