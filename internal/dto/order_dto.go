package dto

import "github.com/shopspring/decimal"

// CreateOrderRequest starts a checkout from the user's cart.
type CreateOrderRequest struct {
	CartID    string `json:"cart_id" validate:"required,uuid4"`
	AddressID string `json:"address_id" validate:"required,uuid4"`
}

// OrderItemResponse is a line-item snapshot as stored at creation time.
type OrderItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderResponse is the full client-facing order.
type OrderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"order_number"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	ShippingCost   decimal.Decimal     `json:"shipping_cost"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	ShippingMethod string              `json:"shipping_method,omitempty"`
	EstimatedDays  int                 `json:"estimated_days,omitempty"`
	Items          []OrderItemResponse `json:"items"`
	// Info is set on idempotent-duplicate paths ("order already exists",
	// "already refunded") so retries surface as success, never as an error.
	Info      string `json:"info,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OrderFilter selects orders for listing.
type OrderFilter struct {
	UserID        string `form:"user_id"`
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

// OrderListResponse is a paginated order page.
type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// CancelOrderRequest carries the cancellation reason for the ledger.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}
