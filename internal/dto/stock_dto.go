package dto

import "github.com/shopspring/decimal"

// StockLevel is the counter snapshot returned by every stock engine mutation.
type StockLevel struct {
	ProductID      string `json:"product_id"`
	OnHandStock    int    `json:"on_hand_stock"`
	ReservedStock  int    `json:"reserved_stock"`
	AvailableStock int    `json:"available_stock"`
}

// AddStockRequest receives new physical units (purchase, return, transfer).
type AddStockRequest struct {
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason          string           `json:"reason"`
	ReferenceNumber string           `json:"reference_number"`
}

// AdjustStockRequest sets on-hand stock to an exact value (physical recount).
type AdjustStockRequest struct {
	TargetQuantity int    `json:"target_quantity" validate:"min=0"`
	Reason         string `json:"reason" validate:"required"`
}

// RecordDamageRequest writes off damaged physical units.
type RecordDamageRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required"`
}

// RecordReturnRequest puts returned units back on hand, optionally linked to
// the order they came back from.
type RecordReturnRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required"`
	OrderID  string `json:"order_id,omitempty"`
}

// LedgerEntryResponse is one row of the audit ledger, client-facing.
type LedgerEntryResponse struct {
	ID              string           `json:"id"`
	ProductID       string           `json:"product_id"`
	Action          string           `json:"action"`
	Quantity        int              `json:"quantity"`
	QuantityChange  int              `json:"quantity_change"`
	PreviousOnHand  int              `json:"previous_on_hand"`
	NewOnHand       int              `json:"new_on_hand"`
	OrderID         *string          `json:"order_id,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	TotalValue      *decimal.Decimal `json:"total_value,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// LedgerListResponse is a paginated ledger page for one product.
type LedgerListResponse struct {
	Data  []LedgerEntryResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// LedgerFilter selects ledger rows for listing.
type LedgerFilter struct {
	Action string `form:"action"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}
