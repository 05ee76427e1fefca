package service

import (
	"context"

	"teahaven/internal/dto"
	"teahaven/internal/model"
	"teahaven/internal/repository"

	"github.com/google/uuid"
)

// AvailabilityService answers "can I buy this" questions from the current
// counters without taking locks. Its answers are advisory; the locked
// reservation inside order creation is the authoritative check.
type AvailabilityService interface {
	Get(ctx context.Context, productID uuid.UUID) (*dto.AvailabilityResponse, error)
	CheckBatch(ctx context.Context, req dto.AvailabilityCheckRequest) ([]dto.AvailabilityCheckResult, error)
	// LowStockReport lists active products at or below their reorder level,
	// for the purchasing dashboard.
	LowStockReport(ctx context.Context) ([]dto.AvailabilityResponse, error)
}

type availabilityService struct {
	productRepo repository.ProductRepository
}

func NewAvailabilityService(productRepo repository.ProductRepository) AvailabilityService {
	return &availabilityService{productRepo: productRepo}
}

func (s *availabilityService) Get(ctx context.Context, productID uuid.UUID) (*dto.AvailabilityResponse, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	resp := classify(p)
	return &resp, nil
}

func (s *availabilityService) CheckBatch(ctx context.Context, req dto.AvailabilityCheckRequest) ([]dto.AvailabilityCheckResult, error) {
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if id, err := uuid.Parse(item.ProductID); err == nil {
			ids = append(ids, id)
		}
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	results := make([]dto.AvailabilityCheckResult, 0, len(req.Items))
	for _, item := range req.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			results = append(results, dto.AvailabilityCheckResult{
				ProductID: item.ProductID,
				Requested: item.Quantity,
			})
			continue
		}
		result := dto.AvailabilityCheckResult{
			ProductID: item.ProductID,
			Requested: item.Quantity,
		}
		if p, ok := byID[id]; ok && p.IsActive {
			result.Available = p.AvailableStock()
			result.InStock = result.Available >= item.Quantity
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *availabilityService) LowStockReport(ctx context.Context) ([]dto.AvailabilityResponse, error) {
	products, err := s.productRepo.ListBelowReorderLevel(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AvailabilityResponse, 0, len(products))
	for i := range products {
		out = append(out, classify(&products[i]))
	}
	return out, nil
}

// classify buckets a product by its counters. Available stock drives the
// customer-facing status; needs_reorder is the purchasing signal and is
// keyed to on-hand (physical) stock, not available.
func classify(p *model.Product) dto.AvailabilityResponse {
	available := p.AvailableStock()
	needsReorder := p.OnHandStock <= p.ReorderLevel || p.OnHandStock <= p.LowStockThreshold

	var status string
	switch {
	case available <= 0:
		status = dto.AvailabilityOutOfStock
	case available <= p.LowStockThreshold:
		status = dto.AvailabilityLowStock
	case needsReorder:
		status = dto.AvailabilityNeedsReorder
	default:
		status = dto.AvailabilityInStock
	}

	return dto.AvailabilityResponse{
		ProductID:      p.ID.String(),
		Status:         status,
		AvailableStock: available,
		OnHandStock:    p.OnHandStock,
		NeedsReorder:   needsReorder,
	}
}
