package dto

import "github.com/shopspring/decimal"

// BeginCheckoutRequest asks for an external payment session for the cart.
type BeginCheckoutRequest struct {
	CartID    string `json:"cart_id" validate:"required,uuid4"`
	AddressID string `json:"address_id" validate:"required,uuid4"`
}

// CheckoutSessionResponse points the client at the external payment page.
// Reused indicates the response came from the idempotency store rather than
// a fresh provider call.
type CheckoutSessionResponse struct {
	SessionID   string          `json:"session_id"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpiresAt   string          `json:"expires_at"`
	Reused      bool            `json:"reused,omitempty"`
}

// PaymentWebhookPayload is the provider's at-least-once callback body.
type PaymentWebhookPayload struct {
	SessionID string `json:"session_id" validate:"required"`
	EventType string `json:"event_type" validate:"required"` // "payment.succeeded" | "payment.failed"
	UserID    string `json:"user_id"`
	CartID    string `json:"cart_id"`
	AddressID string `json:"address_id"`
}
