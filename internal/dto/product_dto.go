package dto

import "github.com/shopspring/decimal"

// CreateProductRequest registers a catalog entry. InitialStock, when set, is
// booked through the stock engine so the ledger is complete from unit one.
type CreateProductRequest struct {
	SKU               string           `json:"sku" validate:"required"`
	Name              string           `json:"name" validate:"required"`
	Description       *string          `json:"description,omitempty"`
	Category          string           `json:"category" validate:"required"`
	Price             decimal.Decimal  `json:"price" validate:"required"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	IsImported        bool             `json:"is_imported"`
	InitialStock      int              `json:"initial_stock" validate:"min=0"`
	ReorderLevel      int              `json:"reorder_level" validate:"min=0"`
	LowStockThreshold int              `json:"low_stock_threshold" validate:"min=0"`
}

// UpdateProductRequest patches catalog fields. Stock counters are never
// updatable here; only the stock endpoints move them.
type UpdateProductRequest struct {
	Name              *string          `json:"name,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	IsImported        *bool            `json:"is_imported,omitempty"`
	ReorderLevel      *int             `json:"reorder_level,omitempty" validate:"omitempty,min=0"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
}

// ProductResponse is the client-facing catalog record.
type ProductResponse struct {
	ID                string           `json:"id"`
	SKU               string           `json:"sku"`
	Name              string           `json:"name"`
	Description       *string          `json:"description,omitempty"`
	Category          string           `json:"category"`
	Price             decimal.Decimal  `json:"price"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	IsImported        bool             `json:"is_imported"`
	OnHandStock       int              `json:"on_hand_stock"`
	ReservedStock     int              `json:"reserved_stock"`
	AvailableStock    int              `json:"available_stock"`
	ReorderLevel      int              `json:"reorder_level"`
	LowStockThreshold int              `json:"low_stock_threshold"`
	IsActive          bool             `json:"is_active"`
	CreatedAt         string           `json:"created_at"`
}

// ProductFilter selects products for listing.
type ProductFilter struct {
	SKU      string `form:"sku"`
	Name     string `form:"name"`
	Category string `form:"category"`
	Active   string `form:"active"` // "", "false", "all"
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

// ProductListResponse is a paginated catalog page.
type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
