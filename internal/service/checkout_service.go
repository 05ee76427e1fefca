package service

import (
	"context"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/infra"
	"teahaven/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CheckoutService guards the path from a cart to a payment session, and from
// a confirmed payment to an order.
//
// Pre-payment the guard is best-effort: an identical checkout attempt inside
// the TTL gets back the payment session already opened for it, so a frantic
// double-click does not open two sessions. If the store is down checkout
// proceeds without it; at worst the provider holds an extra session that
// will expire unpaid. Post-payment the idempotency is hard and lives in the
// database (one order per payment session), not here.
type CheckoutService interface {
	BeginCheckout(ctx context.Context, userID uuid.UUID, req dto.BeginCheckoutRequest) (*dto.CheckoutSessionResponse, error)
	// ConfirmPayment handles the provider webhook. Deliveries are
	// at-least-once; every call with the same session yields the same order.
	ConfirmPayment(ctx context.Context, payload dto.PaymentWebhookPayload) (*dto.OrderResponse, error)
	// VerifySession is the client-polled fallback for lost webhooks: it asks
	// the provider for the session state and confirms if paid.
	VerifySession(ctx context.Context, sessionID string) (*dto.OrderResponse, error)
}

type checkoutService struct {
	cartRepo    repository.CartRepository
	addressRepo repository.AddressRepository
	orders      OrderService
	shipping    ShippingCalculator
	payments    PaymentProvider
	idempotency IdempotencyStore
	ttl         time.Duration
	currency    string
}

func NewCheckoutService(
	cartRepo repository.CartRepository,
	addressRepo repository.AddressRepository,
	orders OrderService,
	shipping ShippingCalculator,
	payments PaymentProvider,
	idempotency IdempotencyStore,
	ttl time.Duration,
) CheckoutService {
	return &checkoutService{
		cartRepo:    cartRepo,
		addressRepo: addressRepo,
		orders:      orders,
		shipping:    shipping,
		payments:    payments,
		idempotency: idempotency,
		ttl:         ttl,
		currency:    "THB",
	}
}

func (s *checkoutService) BeginCheckout(ctx context.Context, userID uuid.UUID, req dto.BeginCheckoutRequest) (*dto.CheckoutSessionResponse, error) {
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid cart id")
	}
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid address id")
	}

	address, err := s.addressRepo.FindByID(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != userID {
		return nil, apierror.InvalidArgument("address does not belong to this user")
	}

	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.UserID != userID {
		return nil, apierror.InvalidArgument("cart does not belong to this user")
	}
	if len(cart.Items) == 0 {
		return nil, apierror.InvalidArgument("cart is empty")
	}

	fingerprint := checkoutFingerprint(userID, cartID, addressID, cart.Items)

	// Store errors are logged and ignored: duplicate suppression is an
	// optimization here, correctness lives behind the payment session.
	if sessionID, gerr := s.idempotency.Get(ctx, fingerprint); gerr != nil {
		log.Warn().Err(gerr).Msg("idempotency store unavailable, proceeding without duplicate suppression")
	} else if sessionID != "" {
		if session, serr := s.payments.GetSession(ctx, sessionID); serr == nil && session.Status == "pending" {
			return sessionResponse(session, true), nil
		}
		// expired, paid or unreachable — fall through and open a fresh one
	}

	subtotal := decimal.Zero
	itemCount := 0
	hasImported := false
	for _, it := range cart.Items {
		if it.Product == nil {
			return nil, apierror.NotFound("product " + it.ProductID.String())
		}
		if !it.Product.IsActive {
			return nil, apierror.Inactive("product " + it.Product.Name)
		}
		if it.Product.AvailableStock() < it.Quantity {
			return nil, &apierror.InsufficientStockError{Items: []apierror.ShortfallItem{{
				ProductID:   it.ProductID.String(),
				ProductName: it.Product.Name,
				Requested:   it.Quantity,
				Available:   it.Product.AvailableStock(),
			}}}
		}
		subtotal = subtotal.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		itemCount += it.Quantity
		if it.Product.IsImported {
			hasImported = true
		}
	}
	quote := s.shipping.Quote(address, subtotal, itemCount, hasImported)
	total := subtotal.Add(quote.Cost).Add(quote.TaxAmount)

	session, err := s.payments.CreateSession(ctx, infra.CreateSessionRequest{
		Amount:    total,
		Currency:  s.currency,
		UserID:    userID.String(),
		CartID:    cartID.String(),
		AddressID: addressID.String(),
		Reference: fingerprint[:16],
	})
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternal, "could not open payment session", err)
	}

	if serr := s.idempotency.Set(ctx, fingerprint, session.SessionID, s.ttl); serr != nil {
		log.Warn().Err(serr).Msg("failed to record checkout fingerprint")
	}
	return sessionResponse(session, false), nil
}

func (s *checkoutService) ConfirmPayment(ctx context.Context, payload dto.PaymentWebhookPayload) (*dto.OrderResponse, error) {
	if payload.EventType != "payment.succeeded" {
		return nil, apierror.InvalidArgument("unsupported event type " + payload.EventType)
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid user id")
	}
	cartID, err := uuid.Parse(payload.CartID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid cart id")
	}
	addressID, err := uuid.Parse(payload.AddressID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid address id")
	}
	return s.orders.CreateFromPaymentConfirmation(ctx, payload.SessionID, userID, cartID, addressID)
}

func (s *checkoutService) VerifySession(ctx context.Context, sessionID string) (*dto.OrderResponse, error) {
	session, err := s.payments.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternal, "could not verify payment session", err)
	}
	if session.Status != "paid" {
		return nil, apierror.InvalidArgument("payment session is not paid (status: " + session.Status + ")")
	}
	userID, err := uuid.Parse(session.UserID)
	if err != nil {
		return nil, apierror.InvalidArgument("payment session carries an invalid user id")
	}
	cartID, err := uuid.Parse(session.CartID)
	if err != nil {
		return nil, apierror.InvalidArgument("payment session carries an invalid cart id")
	}
	addressID, err := uuid.Parse(session.AddressID)
	if err != nil {
		return nil, apierror.InvalidArgument("payment session carries an invalid address id")
	}
	return s.orders.CreateFromPaymentConfirmation(ctx, sessionID, userID, cartID, addressID)
}

func sessionResponse(session *infra.PaymentSession, reused bool) *dto.CheckoutSessionResponse {
	return &dto.CheckoutSessionResponse{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
		Amount:      session.Amount,
		Currency:    session.Currency,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
		Reused:      reused,
	}
}
