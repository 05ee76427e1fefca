package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerAction enumerates every kind of stock-quantity change.
type LedgerAction string

const (
	ActionStockIn            LedgerAction = "stock_in"
	ActionSaleOut            LedgerAction = "sale_out"
	ActionAdjustmentAdd      LedgerAction = "adjustment_add"
	ActionAdjustmentSubtract LedgerAction = "adjustment_subtract"
	ActionReturnIn           LedgerAction = "return_in"
	ActionDamageOut          LedgerAction = "damage_out"
	ActionTransferIn         LedgerAction = "transfer_in"
	ActionTransferOut        LedgerAction = "transfer_out"
	ActionReservation        LedgerAction = "reservation"
	ActionReservationRelease LedgerAction = "reservation_release"
)

// LedgerEntry is one immutable row of the append-only stock ledger, written
// in the same transaction as the counter mutation it describes. It is never
// updated or deleted.
//
// QuantityChange is the signed delta applied to on-hand stock, so
// NewOnHand = PreviousOnHand + QuantityChange always holds and replaying all
// entries for a product in creation order from 0 reproduces the current
// on-hand count. Reservations and releases do not move physical stock: their
// QuantityChange is 0 and Quantity carries the units affected.
type LedgerEntry struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	Action         LedgerAction `gorm:"not null;index"`
	Quantity       int          `gorm:"not null"` // absolute units affected
	QuantityChange int          `gorm:"not null"` // signed on-hand delta
	PreviousOnHand int          `gorm:"not null"`
	NewOnHand      int          `gorm:"not null"`
	OrderID        *uuid.UUID   `gorm:"type:uuid;index"`
	ActingUserID   *uuid.UUID   `gorm:"type:uuid"`
	Reason         string
	ReferenceNumber string
	UnitCost       *decimal.Decimal `gorm:"type:decimal(10,2)"`
	TotalValue     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CreatedAt      time.Time        `gorm:"index"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName overrides GORM's default pluralization (ledger_entries → stock_ledger).
func (LedgerEntry) TableName() string { return "stock_ledger" }
