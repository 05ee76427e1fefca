package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingIdempotencyStore errors on every call, to exercise the fail-open path.
type failingIdempotencyStore struct{}

func (failingIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", fmt.Errorf("redis down")
}
func (failingIdempotencyStore) Set(context.Context, string, string, time.Duration) error {
	return fmt.Errorf("redis down")
}

type checkoutFixture struct {
	*orderFixture
	checkout CheckoutService
	store    IdempotencyStore
}

func newCheckoutFixture(t *testing.T, store IdempotencyStore) *checkoutFixture {
	t.Helper()
	of := newOrderFixture(t)
	if store == nil {
		store = NewMemoryIdempotencyStore()
	}
	addressRepo := newStubAddressRepo(of.address)
	svc := NewCheckoutService(of.carts, addressRepo, of.svc,
		NewShippingCalculator(), of.payments, store, time.Hour)
	return &checkoutFixture{orderFixture: of, checkout: svc, store: store}
}

func (f *checkoutFixture) beginReq() dto.BeginCheckoutRequest {
	return dto.BeginCheckoutRequest{CartID: f.cart.ID.String(), AddressID: f.address.ID.String()}
}

// ── Fingerprint ───────────────────────────────────────────────────────────────

func TestCheckoutFingerprint_Deterministic(t *testing.T) {
	userID, cartID, addressID := uuid.New(), uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	items := []model.CartItem{
		{ProductID: p1, Quantity: 2},
		{ProductID: p2, Quantity: 1},
	}
	reversed := []model.CartItem{
		{ProductID: p2, Quantity: 1},
		{ProductID: p1, Quantity: 2},
	}

	a := checkoutFingerprint(userID, cartID, addressID, items)
	b := checkoutFingerprint(userID, cartID, addressID, reversed)
	assert.Equal(t, a, b, "fingerprint must not depend on cart line order")

	// Any change to the identity changes the fingerprint
	changedQty := []model.CartItem{
		{ProductID: p1, Quantity: 3},
		{ProductID: p2, Quantity: 1},
	}
	assert.NotEqual(t, a, checkoutFingerprint(userID, cartID, addressID, changedQty))
	assert.NotEqual(t, a, checkoutFingerprint(uuid.New(), cartID, addressID, items))
	assert.NotEqual(t, a, checkoutFingerprint(userID, cartID, uuid.New(), items))
}

// ── BeginCheckout ─────────────────────────────────────────────────────────────

func TestBeginCheckout_OpensSession(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	resp, err := f.checkout.BeginCheckout(context.Background(), f.userID, f.beginReq())
	require.NoError(t, err)
	assert.False(t, resp.Reused)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.CheckoutURL)
	// Amount covers subtotal + shipping + tax, same math as order creation
	assert.True(t, resp.Amount.GreaterThan(f.teaA.Price))
	assert.Equal(t, 1, f.payments.createCalls)
}

func TestBeginCheckout_DuplicateReusesSession(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	first, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)

	second, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, f.payments.createCalls, "provider must be called once")
}

func TestBeginCheckout_ChangedCartOpensFreshSession(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	first, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)

	f.cart.Items[0].Quantity = 3

	second, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestBeginCheckout_PaidSessionNotReused(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	first, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	f.payments.sessions[first.SessionID].Status = "paid"

	second, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestBeginCheckout_FailsOpenWhenStoreDown(t *testing.T) {
	f := newCheckoutFixture(t, failingIdempotencyStore{})
	ctx := context.Background()

	// Both attempts succeed; duplicate suppression is simply lost
	_, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	_, err = f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	assert.Equal(t, 2, f.payments.createCalls)
}

func TestBeginCheckout_InsufficientStockRejected(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.cart.Items[0].Quantity = 100

	_, err := f.checkout.BeginCheckout(context.Background(), f.userID, f.beginReq())
	var insuf *apierror.InsufficientStockError
	require.ErrorAs(t, err, &insuf)
	assert.Equal(t, 0, f.payments.createCalls)
}

// ── ConfirmPayment / VerifySession ────────────────────────────────────────────

func TestConfirmPayment_CreatesPaidOrder(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	resp, err := f.checkout.ConfirmPayment(ctx, dto.PaymentWebhookPayload{
		SessionID: "sess_wh",
		EventType: "payment.succeeded",
		UserID:    f.userID.String(),
		CartID:    f.cart.ID.String(),
		AddressID: f.address.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderConfirmed), resp.Status)
	assert.Equal(t, string(model.PaymentPaid), resp.PaymentStatus)
}

func TestConfirmPayment_RejectsUnknownEventType(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	_, err := f.checkout.ConfirmPayment(context.Background(), dto.PaymentWebhookPayload{
		SessionID: "sess_x",
		EventType: "payment.pending",
	})
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidArgument))
}

func TestVerifySession_ConfirmsPaidSession(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	begun, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)
	f.payments.sessions[begun.SessionID].Status = "paid"

	resp, err := f.checkout.VerifySession(ctx, begun.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(model.PaymentPaid), resp.PaymentStatus)

	// Verify again: idempotent, same order
	again, err := f.checkout.VerifySession(ctx, begun.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, again.ID)
}

func TestVerifySession_UnpaidRejected(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	begun, err := f.checkout.BeginCheckout(ctx, f.userID, f.beginReq())
	require.NoError(t, err)

	_, err = f.checkout.VerifySession(ctx, begun.SessionID)
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidArgument))
}
