package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/infra"
	"teahaven/internal/model"
	"teahaven/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubOrderRepo struct {
	orders    map[uuid.UUID]*model.Order
	bySession map[string]*model.Order
	numberSeq int
	// suppressLookups makes FindByPaymentSessionID miss N times, simulating a
	// second webhook delivery racing past the fast-path lookup before the
	// first delivery's insert commits.
	suppressLookups int
	// onLock fires once when a transition acquires the order row lock,
	// modeling a concurrent transaction that won the lock first.
	onLock func(*model.Order)
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:    make(map[uuid.UUID]*model.Order),
		bySession: make(map[string]*model.Order),
	}
}

func (r *stubOrderRepo) CreateTx(_ *gorm.DB, o *model.Order) error {
	if o.PaymentSessionID != nil {
		if _, exists := r.bySession[*o.PaymentSessionID]; exists {
			return apierror.Conflict("duplicate idx_orders_payment_session_id")
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	r.orders[o.ID] = o
	if o.PaymentSessionID != nil {
		r.bySession[*o.PaymentSessionID] = o
	}
	return nil
}

// FindByID returns a snapshot: unlocked reads never observe later mutations.
func (r *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, apierror.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (r *stubOrderRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, apierror.NotFound("order")
	}
	if r.onLock != nil {
		winner := r.onLock
		r.onLock = nil
		winner(o)
	}
	return o, nil
}

func (r *stubOrderRepo) FindByPaymentSessionID(_ context.Context, sessionID string) (*model.Order, error) {
	if r.suppressLookups > 0 {
		r.suppressLookups--
		return nil, apierror.NotFound("order")
	}
	o, ok := r.bySession[sessionID]
	if !ok {
		return nil, apierror.NotFound("order")
	}
	return o, nil
}

func (r *stubOrderRepo) List(_ context.Context, _ dto.OrderFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *stubOrderRepo) SaveTx(_ *gorm.DB, o *model.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *stubOrderRepo) NextOrderNumberTx(_ *gorm.DB, year int) (string, error) {
	r.numberSeq++
	return fmt.Sprintf("TH-%d-%06d", year, r.numberSeq), nil
}

func (r *stubOrderRepo) ListStalePending(_ context.Context, cutoff time.Time, _ int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range r.orders {
		if o.Status == model.OrderPending && o.PaymentStatus == model.PaymentPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) DB() *gorm.DB { return nil }

var _ repository.OrderRepository = (*stubOrderRepo)(nil)

type stubCartRepo struct {
	carts   map[uuid.UUID]*model.Cart
	cleared []uuid.UUID
}

func newStubCartRepo(carts ...*model.Cart) *stubCartRepo {
	r := &stubCartRepo{carts: make(map[uuid.UUID]*model.Cart)}
	for _, c := range carts {
		r.carts[c.ID] = c
	}
	return r
}

func (r *stubCartRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cart, error) {
	c, ok := r.carts[id]
	if !ok {
		return nil, apierror.NotFound("cart")
	}
	return c, nil
}

func (r *stubCartRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	for _, c := range r.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, apierror.NotFound("cart")
}

func (r *stubCartRepo) ClearTx(_ *gorm.DB, cartID uuid.UUID) error {
	r.cleared = append(r.cleared, cartID)
	if c, ok := r.carts[cartID]; ok {
		c.Items = nil
	}
	return nil
}

var _ repository.CartRepository = (*stubCartRepo)(nil)

type stubAddressRepo struct {
	addresses map[uuid.UUID]*model.Address
}

func newStubAddressRepo(addresses ...*model.Address) *stubAddressRepo {
	r := &stubAddressRepo{addresses: make(map[uuid.UUID]*model.Address)}
	for _, a := range addresses {
		r.addresses[a.ID] = a
	}
	return r
}

func (r *stubAddressRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Address, error) {
	a, ok := r.addresses[id]
	if !ok {
		return nil, apierror.NotFound("address")
	}
	return a, nil
}

var _ repository.AddressRepository = (*stubAddressRepo)(nil)

// stubPaymentProvider records refunds and serves canned sessions.
type stubPaymentProvider struct {
	sessions    map[string]*infra.PaymentSession
	refunded    []string
	refundErr   error
	createErr   error
	createCalls int
}

func newStubPaymentProvider() *stubPaymentProvider {
	return &stubPaymentProvider{sessions: make(map[string]*infra.PaymentSession)}
}

func (p *stubPaymentProvider) CreateSession(_ context.Context, req infra.CreateSessionRequest) (*infra.PaymentSession, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	s := &infra.PaymentSession{
		SessionID:   fmt.Sprintf("sess_%d", p.createCalls),
		CheckoutURL: "https://pay.example/s/" + fmt.Sprintf("sess_%d", p.createCalls),
		Status:      "pending",
		Amount:      req.Amount,
		Currency:    req.Currency,
		UserID:      req.UserID,
		CartID:      req.CartID,
		AddressID:   req.AddressID,
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}
	p.sessions[s.SessionID] = s
	return s, nil
}

func (p *stubPaymentProvider) GetSession(_ context.Context, sessionID string) (*infra.PaymentSession, error) {
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return s, nil
}

func (p *stubPaymentProvider) Refund(_ context.Context, sessionID string, _ decimal.Decimal) error {
	if p.refundErr != nil {
		return p.refundErr
	}
	p.refunded = append(p.refunded, sessionID)
	return nil
}

var _ PaymentProvider = (*stubPaymentProvider)(nil)

// ── Fixtures ──────────────────────────────────────────────────────────────────

type orderFixture struct {
	svc      OrderService
	orders   *stubOrderRepo
	carts    *stubCartRepo
	products *stubProductRepo
	ledger   *stubLedgerRepo
	payments *stubPaymentProvider
	userID   uuid.UUID
	cart     *model.Cart
	address  *model.Address
	teaA     *model.Product
	teaB     *model.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	userID := uuid.New()
	teaA := activeProduct("silver-needle", 10, 0)
	teaB := activeProduct("tie-guan-yin", 5, 0)
	teaB.Price = decimal.NewFromInt(250)

	address := &model.Address{ID: uuid.New(), UserID: userID, Region: "Bangkok"}
	cart := &model.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []model.CartItem{
			{CartID: uuid.Nil, ProductID: teaA.ID, Quantity: 2, Product: teaA},
			{CartID: uuid.Nil, ProductID: teaB.ID, Quantity: 1, Product: teaB},
		},
	}

	productRepo := newStubProductRepo(teaA, teaB)
	ledgerRepo := &stubLedgerRepo{}
	stockSvc := NewStockService(productRepo, ledgerRepo, nil, 3*time.Second)
	orderRepo := newStubOrderRepo()
	cartRepo := newStubCartRepo(cart)
	addressRepo := newStubAddressRepo(address)
	payments := newStubPaymentProvider()

	svc := NewOrderService(orderRepo, cartRepo, addressRepo, stockSvc,
		NewShippingCalculator(), payments, nil, 3*time.Second)

	return &orderFixture{
		svc:      svc,
		orders:   orderRepo,
		carts:    cartRepo,
		products: productRepo,
		ledger:   ledgerRepo,
		payments: payments,
		userID:   userID,
		cart:     cart,
		address:  address,
		teaA:     teaA,
		teaB:     teaB,
	}
}

func (f *orderFixture) createReq() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{CartID: f.cart.ID.String(), AddressID: f.address.ID.String()}
}

// ── Creation ──────────────────────────────────────────────────────────────────

func TestCreateFromCart(t *testing.T) {
	f := newOrderFixture(t)

	resp, err := f.svc.CreateFromCart(context.Background(), f.userID, f.createReq())
	require.NoError(t, err)

	assert.Equal(t, string(model.OrderPending), resp.Status)
	assert.Equal(t, string(model.PaymentPending), resp.PaymentStatus)
	assert.Regexp(t, `^TH-\d{4}-\d{6}$`, resp.OrderNumber)

	// Subtotal = 2*100 + 1*250; totals include shipping and tax
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(450)))
	assert.True(t, resp.TotalAmount.Equal(resp.Subtotal.Add(resp.ShippingCost).Add(resp.TaxAmount)))
	require.Len(t, resp.Items, 2)

	// Stock was reserved, not deducted
	assert.Equal(t, 2, f.products.products[f.teaA.ID].ReservedStock)
	assert.Equal(t, 10, f.products.products[f.teaA.ID].OnHandStock)
	assert.Equal(t, 1, f.products.products[f.teaB.ID].ReservedStock)

	// Cart cleared inside the same transaction
	assert.Contains(t, f.carts.cleared, f.cart.ID)
}

func TestCreateFromCart_PriceSnapshotImmutable(t *testing.T) {
	f := newOrderFixture(t)

	resp, err := f.svc.CreateFromCart(context.Background(), f.userID, f.createReq())
	require.NoError(t, err)

	// Catalog price changes after the order exists
	f.products.products[f.teaA.ID].Price = decimal.NewFromInt(999)

	orderID := uuid.MustParse(resp.ID)
	got, err := f.svc.Get(context.Background(), orderID)
	require.NoError(t, err)
	for _, it := range got.Items {
		if it.ProductID == f.teaA.ID.String() {
			assert.True(t, it.UnitPrice.Equal(decimal.NewFromInt(100)))
		}
	}
}

func TestCreateFromCart_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := newOrderFixture(t)
	f.cart.Items[1].Quantity = 50 // more gyokuro than exists

	_, err := f.svc.CreateFromCart(context.Background(), f.userID, f.createReq())
	var insuf *apierror.InsufficientStockError
	require.ErrorAs(t, err, &insuf)

	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.ledger.entries)
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
	assert.Empty(t, f.carts.cleared)
}

func TestCreateFromCart_RejectsForeignAddress(t *testing.T) {
	f := newOrderFixture(t)
	f.address.UserID = uuid.New() // someone else's address

	_, err := f.svc.CreateFromCart(context.Background(), f.userID, f.createReq())
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidArgument))
}

func TestCreateFromCart_RejectsEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	f.cart.Items = nil

	_, err := f.svc.CreateFromCart(context.Background(), f.userID, f.createReq())
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidArgument))
}

// ── Payment confirmation idempotency ──────────────────────────────────────────

func TestCreateFromPaymentConfirmation_Idempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateFromPaymentConfirmation(ctx, "sess_abc", f.userID, f.cart.ID, f.address.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderConfirmed), first.Status)
	assert.Equal(t, string(model.PaymentPaid), first.PaymentStatus)
	assert.Empty(t, first.Info)

	// Second delivery of the same webhook: same order, flagged as duplicate
	second, err := f.svc.CreateFromPaymentConfirmation(ctx, "sess_abc", f.userID, f.cart.ID, f.address.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEmpty(t, second.Info)

	// Exactly one order, stock reserved exactly once
	assert.Len(t, f.orders.orders, 1)
	assert.Equal(t, 2, f.products.products[f.teaA.ID].ReservedStock)
}

func TestCreateFromPaymentConfirmation_RaceResolvedByUniqueIndex(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	sessionID := "sess_race"
	first, err := f.svc.CreateFromPaymentConfirmation(ctx, sessionID, f.userID, f.cart.ID, f.address.ID)
	require.NoError(t, err)

	// The loser of the race: its fast-path lookup misses, its insert hits the
	// unique index, and it must re-fetch the winner's order.
	f.orders.suppressLookups = 1
	f.carts.carts[f.cart.ID].Items = []model.CartItem{
		{ProductID: f.teaA.ID, Quantity: 1, Product: f.teaA},
	}
	second, err := f.svc.CreateFromPaymentConfirmation(ctx, sessionID, f.userID, f.cart.ID, f.address.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEmpty(t, second.Info)
	assert.Len(t, f.orders.orders, 1)
}

// ── Transitions ───────────────────────────────────────────────────────────────

func TestCancel_ReleasesReservations(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateFromCart(ctx, f.userID, f.createReq())
	require.NoError(t, err)
	orderID := uuid.MustParse(created.ID)

	resp, err := f.svc.Cancel(ctx, orderID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderCancelled), resp.Status)

	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
	assert.Equal(t, 10, f.products.products[f.teaA.ID].OnHandStock)

	// Ledger shows reservation then release for each line
	entries := f.ledger.byProduct(f.teaA.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionReservation, entries[0].Action)
	assert.Equal(t, model.ActionReservationRelease, entries[1].Action)
}

func TestCancel_OnlyFromPending(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromCart(ctx, f.userID, f.createReq())
	orderID := uuid.MustParse(created.ID)
	_, err := f.svc.Cancel(ctx, orderID, "first")
	require.NoError(t, err)

	// Already cancelled: no second transition, no double release
	_, err = f.svc.Cancel(ctx, orderID, "second")
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))
	entries := f.ledger.byProduct(f.teaA.ID)
	assert.Len(t, entries, 2)
}

// A user cancel racing the expiry sweeper's cancel: the loser re-reads the
// status under the row lock and stops. Reservations held by other orders on
// the same product survive untouched.
func TestCancel_ConcurrentDuplicateReleasesOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateFromCart(ctx, f.userID, f.createReq())
	require.NoError(t, err)
	orderID := uuid.MustParse(created.ID)

	// Another order holds 3 more units of teaA.
	f.products.products[f.teaA.ID].ReservedStock += 3
	require.Equal(t, 5, f.products.products[f.teaA.ID].ReservedStock)

	// The sweeper cancels while the user's cancel is waiting for the lock.
	f.orders.onLock = func(*model.Order) {
		_, herr := f.svc.Cancel(ctx, orderID, "payment not completed within retention window")
		require.NoError(t, herr)
	}

	_, err = f.svc.Cancel(ctx, orderID, "changed my mind")
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))

	// This order's 2 units came back exactly once; the other order's 3 stayed.
	assert.Equal(t, 3, f.products.products[f.teaA.ID].ReservedStock)
	entries := f.ledger.byProduct(f.teaA.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionReservation, entries[0].Action)
	assert.Equal(t, model.ActionReservationRelease, entries[1].Action)
}

func TestCancel_PaidOrderRejected(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_ship", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	// Payment captured: the way out is Refund, not Cancel
	_, err := f.svc.Cancel(ctx, orderID, "too late")
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))

	_, err = f.svc.MarkShipped(ctx, orderID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, orderID, "way too late")
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))
}

func TestMarkShipped_DeductsStockOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_dd", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	resp, err := f.svc.MarkShipped(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderShipped), resp.Status)
	assert.Equal(t, 8, f.products.products[f.teaA.ID].OnHandStock)
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)

	// Duplicate admin click: idempotent success, stock untouched
	again, err := f.svc.MarkShipped(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderShipped), again.Status)
	assert.NotEmpty(t, again.Info)
	assert.Equal(t, 8, f.products.products[f.teaA.ID].OnHandStock)
}

// Two concurrent ship calls: the loser blocks on the order row lock, then
// sees the winner's committed status. Stock drops exactly once.
func TestMarkShipped_ConcurrentDuplicateDeductsOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_race_ship", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	// The winner ships while the loser is waiting for the row lock.
	f.orders.onLock = func(*model.Order) {
		_, herr := f.svc.MarkShipped(ctx, orderID)
		require.NoError(t, herr)
	}

	resp, err := f.svc.MarkShipped(ctx, orderID)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Info)
	assert.Equal(t, string(model.OrderShipped), resp.Status)
	assert.Equal(t, 8, f.products.products[f.teaA.ID].OnHandStock)
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
}

func TestMarkShipped_PayOnDeliveryCapturesPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromCart(ctx, f.userID, f.createReq())
	resp, err := f.svc.MarkShipped(ctx, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderShipped), resp.Status)
	assert.Equal(t, string(model.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 8, f.products.products[f.teaA.ID].OnHandStock)
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
}

func TestMarkDelivered(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_dl", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	_, err := f.svc.MarkDelivered(ctx, orderID)
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))

	_, err = f.svc.MarkShipped(ctx, orderID)
	require.NoError(t, err)
	resp, err := f.svc.MarkDelivered(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderDelivered), resp.Status)
}

// ── Refund ────────────────────────────────────────────────────────────────────

func TestRefund_BeforeShipmentReleasesStock(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_rf", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	resp, err := f.svc.Refund(ctx, orderID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderRefunded), resp.Status)
	assert.Equal(t, string(model.PaymentRefunded), resp.PaymentStatus)

	// Provider refund happened and reservations came back
	assert.Contains(t, f.payments.refunded, "sess_rf")
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
}

func TestRefund_ProviderFailureBlocksTransition(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_pf", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)
	f.payments.refundErr = fmt.Errorf("provider 502")

	_, err := f.svc.Refund(ctx, orderID, "customer request")
	require.Error(t, err)

	got, _ := f.svc.Get(ctx, orderID)
	assert.Equal(t, string(model.PaymentPaid), got.PaymentStatus)
	assert.Equal(t, 2, f.products.products[f.teaA.ID].ReservedStock)
}

func TestRefund_AlreadyRefundedIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_rr", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)
	_, err := f.svc.Refund(ctx, orderID, "first")
	require.NoError(t, err)

	resp, err := f.svc.Refund(ctx, orderID, "second")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Info)
	assert.Len(t, f.payments.refunded, 1)
}

// Two concurrent refunds both pass the unlocked pre-check and both reach the
// provider (idempotent on its side); the loser re-reads payment status under
// the row lock and releases nothing a second time.
func TestRefund_ConcurrentDuplicateReleasesOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromPaymentConfirmation(ctx, "sess_race_rf", f.userID, f.cart.ID, f.address.ID)
	orderID := uuid.MustParse(created.ID)

	f.orders.onLock = func(*model.Order) {
		_, herr := f.svc.Refund(ctx, orderID, "first click")
		require.NoError(t, herr)
	}

	resp, err := f.svc.Refund(ctx, orderID, "second click")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Info)
	assert.Equal(t, string(model.PaymentRefunded), resp.PaymentStatus)

	// Reservation released exactly once: one reservation, one release.
	entries := f.ledger.byProduct(f.teaA.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, f.products.products[f.teaA.ID].ReservedStock)
}

func TestRefund_UnpaidRejected(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	created, _ := f.svc.CreateFromCart(ctx, f.userID, f.createReq())
	_, err := f.svc.Refund(ctx, uuid.MustParse(created.ID), "nope")
	assert.True(t, apierror.IsCode(err, apierror.CodeInvalidTransition))
}
