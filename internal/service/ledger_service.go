package service

import (
	"context"
	"time"

	"teahaven/internal/dto"
	"teahaven/internal/model"
	"teahaven/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationResult compares a product's counter against its ledger replay.
// Consistent is false when the two disagree, which indicates a write that
// bypassed the stock engine.
type ReconciliationResult struct {
	ProductID    string `json:"product_id"`
	CounterValue int    `json:"counter_value"`
	ReplayValue  int    `json:"replay_value"`
	Consistent   bool   `json:"consistent"`
}

// LedgerService exposes the read side of the stock ledger. Writes happen
// only inside the stock engine's transactions.
type LedgerService interface {
	ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.LedgerFilter) (*dto.LedgerListResponse, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]dto.LedgerEntryResponse, error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*ReconciliationResult, error)
	OnHandAt(ctx context.Context, productID uuid.UUID, at time.Time) (int, error)
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
}

type ledgerService struct {
	ledgerRepo  repository.LedgerRepository
	productRepo repository.ProductRepository
}

func NewLedgerService(ledgerRepo repository.LedgerRepository, productRepo repository.ProductRepository) LedgerService {
	return &ledgerService{ledgerRepo: ledgerRepo, productRepo: productRepo}
}

func (s *ledgerService) ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.LedgerFilter) (*dto.LedgerListResponse, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	entries, total, err := s.ledgerRepo.ListByProduct(ctx, productID, filter)
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
	resp := &dto.LedgerListResponse{
		Data:  make([]dto.LedgerEntryResponse, 0, len(entries)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range entries {
		resp.Data = append(resp.Data, ledgerEntryResponse(&entries[i]))
	}
	return resp, nil
}

func (s *ledgerService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]dto.LedgerEntryResponse, error) {
	entries, err := s.ledgerRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ledgerEntryResponse(&entries[i]))
	}
	return out, nil
}

func (s *ledgerService) Reconcile(ctx context.Context, productID uuid.UUID) (*ReconciliationResult, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	replayed, err := s.ledgerRepo.ReplayOnHand(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{
		ProductID:    productID.String(),
		CounterValue: p.OnHandStock,
		ReplayValue:  replayed,
		Consistent:   p.OnHandStock == replayed,
	}, nil
}

func (s *ledgerService) OnHandAt(ctx context.Context, productID uuid.UUID, at time.Time) (int, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return 0, err
	}
	return s.ledgerRepo.OnHandAt(ctx, productID, at)
}

func (s *ledgerService) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	return s.ledgerRepo.InventoryValue(ctx)
}

func ledgerEntryResponse(e *model.LedgerEntry) dto.LedgerEntryResponse {
	resp := dto.LedgerEntryResponse{
		ID:              e.ID.String(),
		ProductID:       e.ProductID.String(),
		Action:          string(e.Action),
		Quantity:        e.Quantity,
		QuantityChange:  e.QuantityChange,
		PreviousOnHand:  e.PreviousOnHand,
		NewOnHand:       e.NewOnHand,
		Reason:          e.Reason,
		ReferenceNumber: e.ReferenceNumber,
		UnitCost:        e.UnitCost,
		TotalValue:      e.TotalValue,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.OrderID != nil {
		id := e.OrderID.String()
		resp.OrderID = &id
	}
	return resp
}
