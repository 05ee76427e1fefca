package service

import (
	"context"
	"sort"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/model"
	"teahaven/internal/repository"
	"teahaven/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReservationLine is one product/quantity pair in a (batch) reservation.
type ReservationLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockMeta carries the optional audit context for a stock mutation.
type StockMeta struct {
	OrderID         *uuid.UUID
	ActorID         *uuid.UUID
	Reason          string
	ReferenceNumber string
	UnitCost        *decimal.Decimal
}

// StockService is the stock engine: the ONLY code path permitted to mutate
// on_hand_stock / reserved_stock. Every operation locks the product row(s)
// with SELECT ... FOR UPDATE before reading counters, mutates them, and
// appends the matching ledger entry — all inside one transaction, so the
// counter change and its ledger record commit or roll back together.
//
// The *Tx variants run inside a caller-owned transaction (order creation
// composes them with order inserts); the plain variants open their own.
type StockService interface {
	Reserve(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error)
	// ReserveBatchTx reserves every line or none. It returns the locked
	// product rows so callers can snapshot prices under the same lock.
	ReserveBatchTx(tx *gorm.DB, lines []ReservationLine, meta StockMeta) ([]model.Product, error)
	Release(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error)
	ReleaseTx(tx *gorm.DB, productID uuid.UUID, qty int, meta StockMeta) error
	DeductTx(tx *gorm.DB, productID uuid.UUID, qty int, meta StockMeta) error
	AddStock(ctx context.Context, productID uuid.UUID, req dto.AddStockRequest, actorID *uuid.UUID) (*dto.StockLevel, error)
	AdjustTo(ctx context.Context, productID uuid.UUID, targetQty int, reason string, actorID *uuid.UUID) (*dto.StockLevel, error)
	RecordDamage(ctx context.Context, productID uuid.UUID, qty int, reason string, actorID *uuid.UUID) (*dto.StockLevel, error)
	// RecordReturn puts returned goods back into on-hand stock, typically
	// after a post-shipment refund.
	RecordReturn(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error)
}

type stockService struct {
	productRepo repository.ProductRepository
	ledgerRepo  repository.LedgerRepository
	dispatcher  *worker.Dispatcher
	lockTimeout time.Duration
}

func NewStockService(
	productRepo repository.ProductRepository,
	ledgerRepo repository.LedgerRepository,
	dispatcher *worker.Dispatcher,
	lockTimeout time.Duration,
) StockService {
	return &stockService{
		productRepo: productRepo,
		ledgerRepo:  ledgerRepo,
		dispatcher:  dispatcher,
		lockTimeout: lockTimeout,
	}
}

// ── Reservation ───────────────────────────────────────────────────────────────

func (s *stockService) Reserve(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error) {
	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		products, err := s.reserveLocked(tx, []ReservationLine{{ProductID: productID, Quantity: qty}}, meta)
		if err != nil {
			return err
		}
		level = stockLevel(&products[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.reserve", productID, meta, map[string]interface{}{"quantity": qty})
	return level, nil
}

func (s *stockService) ReserveBatchTx(tx *gorm.DB, lines []ReservationLine, meta StockMeta) ([]model.Product, error) {
	return s.reserveLocked(tx, lines, meta)
}

// reserveLocked performs the all-or-nothing reservation inside tx. Lock
// acquisition is ordered by ascending product id so two concurrent batches
// over overlapping product sets cannot deadlock on lock ordering.
func (s *stockService) reserveLocked(tx *gorm.DB, lines []ReservationLine, meta StockMeta) ([]model.Product, error) {
	merged, ids, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	products, err := s.productRepo.FindBatchForUpdateTx(tx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	// Validate every line before mutating anything: a single failure aborts
	// the whole batch and no partial reservation is ever visible.
	var shortfalls []apierror.ShortfallItem
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, apierror.NotFound("product " + id.String())
		}
		if !p.IsActive {
			return nil, apierror.Inactive("product " + p.Name)
		}
		if p.AvailableStock() < merged[id] {
			shortfalls = append(shortfalls, apierror.ShortfallItem{
				ProductID:   id.String(),
				ProductName: p.Name,
				Requested:   merged[id],
				Available:   p.AvailableStock(),
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &apierror.InsufficientStockError{Items: shortfalls}
	}

	for _, id := range ids {
		p := byID[id]
		qty := merged[id]
		p.ReservedStock += qty
		if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
			return nil, err
		}
		if err := s.appendLedger(tx, p, model.ActionReservation, qty, 0, meta); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// ── Release / Deduct ──────────────────────────────────────────────────────────

func (s *stockService) Release(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error) {
	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		if err := s.releaseLocked(tx, productID, qty, meta); err != nil {
			return err
		}
		p, err := s.productRepo.FindForUpdateTx(tx, productID)
		if err != nil {
			return err
		}
		level = stockLevel(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.release", productID, meta, map[string]interface{}{"quantity": qty})
	return level, nil
}

func (s *stockService) ReleaseTx(tx *gorm.DB, productID uuid.UUID, qty int, meta StockMeta) error {
	return s.releaseLocked(tx, productID, qty, meta)
}

// releaseLocked decrements reserved stock, floored at zero: releasing more
// than is reserved is tolerated so partially-released orders stay safe to
// retry.
func (s *stockService) releaseLocked(tx *gorm.DB, productID uuid.UUID, qty int, meta StockMeta) error {
	if qty <= 0 {
		return apierror.InvalidArgument("release quantity must be positive")
	}
	p, err := s.productRepo.FindForUpdateTx(tx, productID)
	if err != nil {
		return err
	}
	released := qty
	if released > p.ReservedStock {
		released = p.ReservedStock
	}
	if released == 0 {
		return nil // nothing reserved — idempotent no-op
	}
	p.ReservedStock -= released
	if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
		return err
	}
	return s.appendLedger(tx, p, model.ActionReservationRelease, released, 0, meta)
}

// DeductTx converts a reservation into a finalized sale: both on-hand and
// reserved drop by qty (floored at zero). The only operation that reduces
// physical stock for a sale.
func (s *stockService) DeductTx(tx *gorm.DB, productID uuid.UUID, qty int, meta StockMeta) error {
	if qty <= 0 {
		return apierror.InvalidArgument("deduct quantity must be positive")
	}
	p, err := s.productRepo.FindForUpdateTx(tx, productID)
	if err != nil {
		return err
	}

	prevOnHand := p.OnHandStock
	p.OnHandStock -= qty
	if p.OnHandStock < 0 {
		p.OnHandStock = 0
	}
	p.ReservedStock -= qty
	if p.ReservedStock < 0 {
		p.ReservedStock = 0
	}
	if p.ReservedStock > p.OnHandStock {
		p.ReservedStock = p.OnHandStock
	}
	if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
		return err
	}
	return s.appendLedgerWithPrev(tx, p, model.ActionSaleOut, qty, p.OnHandStock-prevOnHand, prevOnHand, meta)
}

// ── Admin stock operations ────────────────────────────────────────────────────

func (s *stockService) AddStock(ctx context.Context, productID uuid.UUID, req dto.AddStockRequest, actorID *uuid.UUID) (*dto.StockLevel, error) {
	if req.Quantity <= 0 {
		return nil, apierror.InvalidArgument("quantity must be positive")
	}
	meta := StockMeta{
		ActorID:         actorID,
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		UnitCost:        req.UnitCost,
	}

	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		p, err := s.productRepo.FindForUpdateTx(tx, productID)
		if err != nil {
			return err
		}
		p.OnHandStock += req.Quantity
		if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
			return err
		}
		if req.UnitCost != nil {
			p.UnitCost = req.UnitCost
			if err := s.productRepo.UpdateUnitCostTx(tx, p.ID, *req.UnitCost); err != nil {
				return err
			}
		}
		if err := s.appendLedger(tx, p, model.ActionStockIn, req.Quantity, req.Quantity, meta); err != nil {
			return err
		}
		level = stockLevel(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.add", productID, meta, map[string]interface{}{"quantity": req.Quantity})
	return level, nil
}

// AdjustTo sets on-hand stock to an exact value (physical recount), clamped
// at zero. Reservations in excess of physical stock cannot exist, so reserved
// is clamped down to match when the new value undercuts it.
func (s *stockService) AdjustTo(ctx context.Context, productID uuid.UUID, targetQty int, reason string, actorID *uuid.UUID) (*dto.StockLevel, error) {
	if targetQty < 0 {
		targetQty = 0
	}
	meta := StockMeta{ActorID: actorID, Reason: reason}

	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		p, err := s.productRepo.FindForUpdateTx(tx, productID)
		if err != nil {
			return err
		}
		delta := targetQty - p.OnHandStock
		if delta == 0 {
			level = stockLevel(p)
			return nil
		}

		action := model.ActionAdjustmentAdd
		if delta < 0 {
			action = model.ActionAdjustmentSubtract
		}

		p.OnHandStock = targetQty
		if p.ReservedStock > p.OnHandStock {
			p.ReservedStock = p.OnHandStock
		}
		if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
			return err
		}
		if err := s.appendLedger(tx, p, action, abs(delta), delta, meta); err != nil {
			return err
		}
		level = stockLevel(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.adjust", productID, meta, map[string]interface{}{"target": targetQty})
	return level, nil
}

func (s *stockService) RecordDamage(ctx context.Context, productID uuid.UUID, qty int, reason string, actorID *uuid.UUID) (*dto.StockLevel, error) {
	if qty <= 0 {
		return nil, apierror.InvalidArgument("quantity must be positive")
	}
	meta := StockMeta{ActorID: actorID, Reason: reason}

	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		p, err := s.productRepo.FindForUpdateTx(tx, productID)
		if err != nil {
			return err
		}
		prevOnHand := p.OnHandStock
		p.OnHandStock -= qty
		if p.OnHandStock < 0 {
			p.OnHandStock = 0
		}
		if p.ReservedStock > p.OnHandStock {
			p.ReservedStock = p.OnHandStock
		}
		written := prevOnHand - p.OnHandStock
		if written == 0 {
			level = stockLevel(p)
			return nil
		}
		if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
			return err
		}
		if err := s.appendLedgerWithPrev(tx, p, model.ActionDamageOut, written, -written, prevOnHand, meta); err != nil {
			return err
		}
		level = stockLevel(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.damage", productID, meta, map[string]interface{}{"quantity": qty})
	return level, nil
}

func (s *stockService) RecordReturn(ctx context.Context, productID uuid.UUID, qty int, meta StockMeta) (*dto.StockLevel, error) {
	if qty <= 0 {
		return nil, apierror.InvalidArgument("quantity must be positive")
	}

	var level *dto.StockLevel
	err := runTx(ctx, s.productRepo.DB(), s.lockTimeout, func(tx *gorm.DB) error {
		p, err := s.productRepo.FindForUpdateTx(tx, productID)
		if err != nil {
			return err
		}
		p.OnHandStock += qty
		if err := s.productRepo.UpdateCountersTx(tx, p.ID, p.OnHandStock, p.ReservedStock); err != nil {
			return err
		}
		if err := s.appendLedger(tx, p, model.ActionReturnIn, qty, qty, meta); err != nil {
			return err
		}
		level = stockLevel(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "stock.return", productID, meta, map[string]interface{}{"quantity": qty})
	return level, nil
}

// ── Internals ─────────────────────────────────────────────────────────────────

// appendLedger writes one entry where the product's counters have already
// been mutated and quantityChange describes the on-hand delta just applied.
func (s *stockService) appendLedger(tx *gorm.DB, p *model.Product, action model.LedgerAction, qty, quantityChange int, meta StockMeta) error {
	return s.appendLedgerWithPrev(tx, p, action, qty, quantityChange, p.OnHandStock-quantityChange, meta)
}

func (s *stockService) appendLedgerWithPrev(tx *gorm.DB, p *model.Product, action model.LedgerAction, qty, quantityChange, prevOnHand int, meta StockMeta) error {
	entry := &model.LedgerEntry{
		ProductID:       p.ID,
		Action:          action,
		Quantity:        qty,
		QuantityChange:  quantityChange,
		PreviousOnHand:  prevOnHand,
		NewOnHand:       prevOnHand + quantityChange,
		OrderID:         meta.OrderID,
		ActingUserID:    meta.ActorID,
		Reason:          meta.Reason,
		ReferenceNumber: meta.ReferenceNumber,
		UnitCost:        meta.UnitCost,
	}
	if meta.UnitCost != nil {
		total := meta.UnitCost.Mul(decimal.NewFromInt(int64(qty)))
		entry.TotalValue = &total
	}
	return s.ledgerRepo.CreateTx(tx, entry)
}

// emitAudit is fire-and-forget: the mutation has already committed.
func (s *stockService) emitAudit(ctx context.Context, eventType string, productID uuid.UUID, meta StockMeta, detail map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	if detail == nil {
		detail = map[string]interface{}{}
	}
	if meta.Reason != "" {
		detail["reason"] = meta.Reason
	}
	_ = s.dispatcher.EnqueueAudit(ctx, worker.AuditJob{
		EventType:  eventType,
		EntityType: "product",
		EntityID:   productID,
		ActorID:    meta.ActorID,
		Detail:     detail,
	})
}

// mergeLines validates quantities, merges duplicate product lines and returns
// the product ids in ascending order — the global lock-acquisition order.
func mergeLines(lines []ReservationLine) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(lines) == 0 {
		return nil, nil, apierror.InvalidArgument("no items to reserve")
	}
	merged := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, nil, apierror.InvalidArgument("reserve quantity must be positive")
		}
		merged[l.ProductID] += l.Quantity
	}
	ids := make([]uuid.UUID, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return merged, ids, nil
}

func stockLevel(p *model.Product) *dto.StockLevel {
	return &dto.StockLevel{
		ProductID:      p.ID.String(),
		OnHandStock:    p.OnHandStock,
		ReservedStock:  p.ReservedStock,
		AvailableStock: p.AvailableStock(),
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
