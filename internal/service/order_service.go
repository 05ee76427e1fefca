package service

import (
	"context"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/model"
	"teahaven/internal/repository"
	"teahaven/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService drives the order lifecycle state machine. The fulfillment
// status and the payment status move together; every transition that touches
// stock composes with the stock engine inside one transaction so an order
// can never disagree with its reservations.
type OrderService interface {
	// CreateFromCart builds a pending order from the user's cart, reserving
	// stock for every line. Used for pay-on-delivery flows and as the shared
	// core of the post-payment path.
	CreateFromCart(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error)
	// CreateFromPaymentConfirmation creates a confirmed+paid order for a
	// payment session. Safe under at-least-once webhook delivery: repeated
	// calls for the same session return the existing order.
	CreateFromPaymentConfirmation(ctx context.Context, sessionID string, userID, cartID, addressID uuid.UUID) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error)
	Get(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error)
	List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	addressRepo repository.AddressRepository
	stock       StockService
	shipping    ShippingCalculator
	payments    PaymentProvider
	dispatcher  *worker.Dispatcher
	lockTimeout time.Duration
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	addressRepo repository.AddressRepository,
	stock StockService,
	shipping ShippingCalculator,
	payments PaymentProvider,
	dispatcher *worker.Dispatcher,
	lockTimeout time.Duration,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		addressRepo: addressRepo,
		stock:       stock,
		shipping:    shipping,
		payments:    payments,
		dispatcher:  dispatcher,
		lockTimeout: lockTimeout,
	}
}

// ── Creation ──────────────────────────────────────────────────────────────────

func (s *orderService) CreateFromCart(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid cart id")
	}
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid address id")
	}
	order, err := s.createOrder(ctx, userID, cartID, addressID, nil)
	if err != nil {
		return nil, err
	}
	return orderResponse(order, ""), nil
}

func (s *orderService) CreateFromPaymentConfirmation(ctx context.Context, sessionID string, userID, cartID, addressID uuid.UUID) (*dto.OrderResponse, error) {
	// Fast path: a previous webhook delivery already created the order.
	if existing, err := s.orderRepo.FindByPaymentSessionID(ctx, sessionID); err == nil {
		return orderResponse(existing, "order already exists for this payment session"), nil
	} else if !apierror.IsCode(err, apierror.CodeNotFound) {
		return nil, err
	}

	order, err := s.createOrder(ctx, userID, cartID, addressID, &sessionID)
	if err != nil {
		// Two deliveries raced past the fast path; the unique index on
		// payment_session_id decided the winner. The loser re-fetches.
		if repository.IsConflict(err) {
			if existing, ferr := s.orderRepo.FindByPaymentSessionID(ctx, sessionID); ferr == nil {
				return orderResponse(existing, "order already exists for this payment session"), nil
			}
		}
		return nil, err
	}
	return orderResponse(order, ""), nil
}

// createOrder is the shared creation core. When sessionID is non-nil the
// order is born confirmed+paid (post-payment path); otherwise it is born
// pending+pending and awaits payment.
func (s *orderService) createOrder(ctx context.Context, userID, cartID, addressID uuid.UUID, sessionID *string) (*model.Order, error) {
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

	lines := make([]ReservationLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	var order *model.Order
	err = runTx(ctx, s.orderRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		// Reserve first: the rows stay locked for the remainder of the
		// transaction, so the prices snapshotted below cannot drift between
		// the availability check and the insert.
		products, rerr := s.stock.ReserveBatchTx(tx, lines, StockMeta{ActorID: &userID, Reason: "order reservation"})
		if rerr != nil {
			return rerr
		}
		byID := make(map[uuid.UUID]*model.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		subtotal := decimal.Zero
		itemCount := 0
		hasImported := false
		items := make([]model.OrderItem, 0, len(cart.Items))
		for _, ci := range cart.Items {
			p := byID[ci.ProductID]
			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
			items = append(items, model.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				Quantity:    ci.Quantity,
				UnitPrice:   p.Price,
				LineTotal:   lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
			itemCount += ci.Quantity
			if p.IsImported {
				hasImported = true
			}
		}

		quote := s.shipping.Quote(address, subtotal, itemCount, hasImported)

		number, nerr := s.orderRepo.NextOrderNumberTx(tx, time.Now().UTC().Year())
		if nerr != nil {
			return nerr
		}

		order = &model.Order{
			OrderNumber:      number,
			UserID:           userID,
			AddressID:        addressID,
			Status:           model.OrderPending,
			PaymentStatus:    model.PaymentPending,
			Subtotal:         subtotal,
			ShippingCost:     quote.Cost,
			TaxAmount:        quote.TaxAmount,
			TotalAmount:      subtotal.Add(quote.Cost).Add(quote.TaxAmount),
			ShippingMethod:   quote.Method,
			EstimatedDays:    quote.EstimatedDays,
			PaymentSessionID: sessionID,
			Items:            items,
		}
		if sessionID != nil {
			order.Status = model.OrderConfirmed
			order.PaymentStatus = model.PaymentPaid
		}
		if cerr := s.orderRepo.CreateTx(tx, order); cerr != nil {
			return cerr
		}
		return s.cartRepo.ClearTx(tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "order.created", order, map[string]interface{}{
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.String(),
		"status":       string(order.Status),
	})
	return order, nil
}

// ── Transitions ───────────────────────────────────────────────────────────────

// Cancel releases every reservation and moves the order to cancelled. Only
// pending orders may be cancelled; once payment is captured the path is
// Refund, not Cancel. The status guard runs on the locked order row, so a
// cancel racing the expiry sweeper (or another operator) releases
// reservations exactly once.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	var order *model.Order
	err := runTx(ctx, s.orderRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		var terr error
		order, terr = s.orderRepo.FindForUpdateTx(tx, orderID)
		if terr != nil {
			return terr
		}
		if order.Status != model.OrderPending {
			return apierror.InvalidTransition("cannot cancel an order in status " + string(order.Status))
		}
		for _, item := range order.Items {
			if rerr := s.stock.ReleaseTx(tx, item.ProductID, item.Quantity, StockMeta{
				OrderID: &order.ID,
				Reason:  reason,
			}); rerr != nil {
				return rerr
			}
		}
		now := time.Now().UTC()
		order.Status = model.OrderCancelled
		order.CancelledAt = &now
		return s.orderRepo.SaveTx(tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "order.cancelled", order, map[string]interface{}{"reason": reason})
	return orderResponse(order, ""), nil
}

// MarkShipped finalizes the sale: reservations become deductions, physical
// stock drops, and the order moves to shipped with payment marked captured
// (covers pay-on-delivery orders). The guard runs on the locked order row, so
// concurrent duplicate calls deduct stock exactly once; the loser sees the
// already-shipped order and returns it as an idempotent success.
func (s *orderService) MarkShipped(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error) {
	var order *model.Order
	var info string
	err := runTx(ctx, s.orderRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		var terr error
		order, terr = s.orderRepo.FindForUpdateTx(tx, orderID)
		if terr != nil {
			return terr
		}
		switch order.Status {
		case model.OrderShipped, model.OrderDelivered:
			info = "order is already shipped"
			return nil
		case model.OrderPending, model.OrderConfirmed, model.OrderProcessing:
		default:
			return apierror.InvalidTransition("cannot ship an order in status " + string(order.Status))
		}

		for _, item := range order.Items {
			if derr := s.stock.DeductTx(tx, item.ProductID, item.Quantity, StockMeta{
				OrderID: &order.ID,
				Reason:  "order shipped",
			}); derr != nil {
				return derr
			}
		}
		now := time.Now().UTC()
		order.Status = model.OrderShipped
		order.PaymentStatus = model.PaymentPaid
		order.ShippedAt = &now
		return s.orderRepo.SaveTx(tx, order)
	})
	if err != nil {
		return nil, err
	}
	if info != "" {
		return orderResponse(order, info), nil
	}

	s.emitAudit(ctx, "order.shipped", order, nil)
	return orderResponse(order, ""), nil
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error) {
	var order *model.Order
	err := runTx(ctx, s.orderRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		var terr error
		order, terr = s.orderRepo.FindForUpdateTx(tx, orderID)
		if terr != nil {
			return terr
		}
		if order.Status != model.OrderShipped {
			return apierror.InvalidTransition("cannot deliver an order in status " + string(order.Status))
		}
		now := time.Now().UTC()
		order.Status = model.OrderDelivered
		order.DeliveredAt = &now
		return s.orderRepo.SaveTx(tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "order.delivered", order, nil)
	return orderResponse(order, ""), nil
}

// Refund reverses a paid order. The provider refund runs first: if the money
// cannot move, the order does not transition. An already-refunded order is an
// idempotent success so webhook or operator retries never surface as errors.
//
// The pre-transaction read only decides whether to call the provider (which
// treats repeated refunds for one session as no-ops); the transition guard is
// re-evaluated on the locked row, so a concurrent refund releases
// reservations exactly once.
func (s *orderService) Refund(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == model.PaymentRefunded {
		return orderResponse(order, "order is already refunded"), nil
	}
	if order.PaymentStatus != model.PaymentPaid {
		return nil, apierror.InvalidTransition("cannot refund an order with payment status " + string(order.PaymentStatus))
	}

	if order.PaymentSessionID != nil && s.payments != nil {
		if perr := s.payments.Refund(ctx, *order.PaymentSessionID, order.TotalAmount); perr != nil {
			return nil, apierror.Wrap(apierror.CodeInternal, "payment provider refund failed", perr)
		}
	}

	var info string
	err = runTx(ctx, s.orderRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		var terr error
		order, terr = s.orderRepo.FindForUpdateTx(tx, orderID)
		if terr != nil {
			return terr
		}
		if order.PaymentStatus == model.PaymentRefunded {
			info = "order is already refunded"
			return nil
		}
		if order.PaymentStatus != model.PaymentPaid {
			return apierror.InvalidTransition("cannot refund an order with payment status " + string(order.PaymentStatus))
		}

		// Orders refunded before shipment still hold reservations; give the
		// stock back. Shipped orders have no reservations left to release
		// (returns re-enter stock through the return_in flow, not here).
		if order.Status == model.OrderPending || order.Status == model.OrderConfirmed || order.Status == model.OrderProcessing {
			for _, item := range order.Items {
				if rerr := s.stock.ReleaseTx(tx, item.ProductID, item.Quantity, StockMeta{
					OrderID: &order.ID,
					Reason:  reason,
				}); rerr != nil {
					return rerr
				}
			}
		}
		now := time.Now().UTC()
		order.Status = model.OrderRefunded
		order.PaymentStatus = model.PaymentRefunded
		order.RefundedAt = &now
		return s.orderRepo.SaveTx(tx, order)
	})
	if err != nil {
		return nil, err
	}
	if info != "" {
		return orderResponse(order, info), nil
	}

	log.Info().Str("order_id", order.ID.String()).Str("reason", reason).Msg("order refunded")
	s.emitAudit(ctx, "order.refunded", order, map[string]interface{}{"reason": reason})
	return orderResponse(order, ""), nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderResponse(order, ""), nil
}

func (s *orderService) List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	resp := &dto.OrderListResponse{
		Data:  make([]dto.OrderResponse, 0, len(orders)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range orders {
		resp.Data = append(resp.Data, *orderResponse(&orders[i], ""))
	}
	return resp, nil
}

// ── Internals ─────────────────────────────────────────────────────────────────

func (s *orderService) emitAudit(ctx context.Context, eventType string, order *model.Order, detail map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.EnqueueAudit(ctx, worker.AuditJob{
		EventType:  eventType,
		EntityType: "order",
		EntityID:   order.ID,
		ActorID:    &order.UserID,
		Detail:     detail,
	})
}

func orderResponse(o *model.Order, info string) *dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return &dto.OrderResponse{
		ID:             o.ID.String(),
		OrderNumber:    o.OrderNumber,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		TaxAmount:      o.TaxAmount,
		TotalAmount:    o.TotalAmount,
		ShippingMethod: o.ShippingMethod,
		EstimatedDays:  o.EstimatedDays,
		Items:          items,
		Info:           info,
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
