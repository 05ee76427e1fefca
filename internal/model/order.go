package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment side of the order state machine.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the payment side of the order state machine.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order couples the fulfillment status to the payment status and owns the
// immutable line-item snapshots taken at creation time.
//
// PaymentSessionID is the provider-assigned session identifier and the
// post-payment idempotency anchor: the unique index guarantees at most one
// order per payment session no matter how many times the webhook is delivered.
type Order struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderNumber string        `gorm:"uniqueIndex;not null"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	AddressID   uuid.UUID     `gorm:"type:uuid;not null"`
	Status      OrderStatus   `gorm:"not null;default:'pending';index"`
	PaymentStatus PaymentStatus `gorm:"not null;default:'pending';index"`

	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	ShippingMethod string
	EstimatedDays  int

	PaymentSessionID *string `gorm:"uniqueIndex"`

	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is an immutable snapshot of a product at order-creation time.
// Prices here are never re-derived from the current catalog.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"not null"`
	SKU         string          `gorm:"not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time
}
