package infra

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// PaymentSession is the provider's view of one checkout attempt. SessionID is
// the post-payment idempotency anchor; the user/cart/address metadata captured
// at session creation lets the webhook path recreate the order without
// trusting client input.
type PaymentSession struct {
	SessionID   string          `json:"session_id"`
	CheckoutURL string          `json:"checkout_url"`
	Status      string          `json:"status"` // "pending" | "paid" | "failed" | "refunded"
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	UserID      string          `json:"user_id"`
	CartID      string          `json:"cart_id"`
	AddressID   string          `json:"address_id"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// CreateSessionRequest asks the provider to open a payment session.
type CreateSessionRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	UserID    string          `json:"user_id"`
	CartID    string          `json:"cart_id"`
	AddressID string          `json:"address_id"`
	Reference string          `json:"reference"`
}

// PaymentClient talks to the external payment provider over HTTP. All calls go
// through the circuit breaker so a downed provider fails fast instead of
// stalling checkouts.
type PaymentClient struct {
	http *resty.Client
	cb   *CircuitBreaker
}

func NewPaymentClient(baseURL string, cb *CircuitBreaker) *PaymentClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &PaymentClient{http: client, cb: cb}
}

// CreateSession opens a payment session for the given amount.
func (c *PaymentClient) CreateSession(ctx context.Context, req CreateSessionRequest) (*PaymentSession, error) {
	var session PaymentSession
	err := c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&session).
			Post("/v1/sessions")
		if err != nil {
			return fmt.Errorf("payment provider unreachable: %w", err)
		}
		if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("payment provider returned %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession fetches the current state of a session, including its captured
// checkout metadata. Used by the verify endpoint.
func (c *PaymentClient) GetSession(ctx context.Context, sessionID string) (*PaymentSession, error) {
	var session PaymentSession
	err := c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&session).
			Get("/v1/sessions/" + sessionID)
		if err != nil {
			return fmt.Errorf("payment provider unreachable: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("payment provider returned %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Refund initiates a refund keyed by the session identifier. The provider
// treats repeated refunds for the same session as no-ops; our order state
// machine additionally guards against calling this twice.
func (c *PaymentClient) Refund(ctx context.Context, sessionID string, amount decimal.Decimal) error {
	return c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{"amount": amount}).
			Post("/v1/sessions/" + sessionID + "/refund")
		if err != nil {
			return fmt.Errorf("payment provider unreachable: %w", err)
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
			return fmt.Errorf("payment provider returned %d", resp.StatusCode())
		}
		return nil
	})
}

// VerifyWebhookSignature checks the provider's HMAC-SHA256 signature over the
// raw webhook body. Constant-time comparison.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
