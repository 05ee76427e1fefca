package service

import (
	"context"

	"teahaven/internal/infra"
	"teahaven/internal/model"

	"github.com/shopspring/decimal"
)

// PaymentProvider abstracts the external payment gateway so order and
// checkout services can be unit tested without HTTP. infra.PaymentClient is
// the production implementation.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req infra.CreateSessionRequest) (*infra.PaymentSession, error)
	GetSession(ctx context.Context, sessionID string) (*infra.PaymentSession, error)
	Refund(ctx context.Context, sessionID string, amount decimal.Decimal) error
}

// ShippingQuote is the calculator's output for one order.
type ShippingQuote struct {
	Cost          decimal.Decimal
	TaxAmount     decimal.Decimal
	Method        string
	EstimatedDays int
}

// ShippingCalculator prices shipping and tax for a cart destined to an
// address. Implementations must be pure: same inputs, same quote.
type ShippingCalculator interface {
	Quote(address *model.Address, subtotal decimal.Decimal, itemCount int, hasImported bool) ShippingQuote
}

// tableShippingCalculator is a rate-table implementation. Domestic orders
// ship standard; orders containing imported goods ship via the bonded
// courier at a surcharge. Orders over the free-shipping floor ship free.
type tableShippingCalculator struct {
	freeShippingFloor decimal.Decimal
	baseRate          decimal.Decimal
	perItemRate       decimal.Decimal
	importSurcharge   decimal.Decimal
	taxRate           decimal.Decimal
}

func NewShippingCalculator() ShippingCalculator {
	return &tableShippingCalculator{
		freeShippingFloor: decimal.NewFromInt(1500),
		baseRate:          decimal.NewFromInt(45),
		perItemRate:       decimal.NewFromInt(8),
		importSurcharge:   decimal.NewFromInt(120),
		taxRate:           decimal.NewFromFloat(0.07),
	}
}

func (c *tableShippingCalculator) Quote(address *model.Address, subtotal decimal.Decimal, itemCount int, hasImported bool) ShippingQuote {
	quote := ShippingQuote{
		Method:        "standard",
		EstimatedDays: 3,
	}

	cost := c.baseRate.Add(c.perItemRate.Mul(decimal.NewFromInt(int64(itemCount))))
	if hasImported {
		quote.Method = "bonded-courier"
		quote.EstimatedDays = 7
		cost = cost.Add(c.importSurcharge)
	}
	if remoteRegion(address) {
		quote.EstimatedDays += 2
	}
	if subtotal.GreaterThanOrEqual(c.freeShippingFloor) && !hasImported {
		cost = decimal.Zero
		quote.Method = "standard-free"
	}

	quote.Cost = cost.Round(2)
	quote.TaxAmount = subtotal.Mul(c.taxRate).Round(2)
	return quote
}

func remoteRegion(address *model.Address) bool {
	if address == nil {
		return false
	}
	switch address.Region {
	case "Mae Hong Son", "Narathiwat", "Yala", "Pattani":
		return true
	}
	return false
}
