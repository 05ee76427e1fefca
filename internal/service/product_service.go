package service

import (
	"context"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/model"
	"teahaven/internal/repository"

	"github.com/google/uuid"
)

// ProductService manages the catalog. Counter fields are read-only here;
// all stock mutations route through the stock engine so every unit is
// ledgered, including a new product's initial stock.
type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest, actorID *uuid.UUID) (*dto.ProductResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	GetBySKU(ctx context.Context, sku string) (*dto.ProductResponse, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	productRepo repository.ProductRepository
	stock       StockService
}

func NewProductService(productRepo repository.ProductRepository, stock StockService) ProductService {
	return &productService{productRepo: productRepo, stock: stock}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest, actorID *uuid.UUID) (*dto.ProductResponse, error) {
	if _, err := s.productRepo.FindBySKU(ctx, req.SKU); err == nil {
		return nil, apierror.Conflict("a product with SKU " + req.SKU + " already exists")
	} else if !apierror.IsCode(err, apierror.CodeNotFound) {
		return nil, err
	}

	p := &model.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Price:             req.Price,
		UnitCost:          req.UnitCost,
		IsImported:        req.IsImported,
		ReorderLevel:      req.ReorderLevel,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          true,
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	if req.InitialStock > 0 {
		level, err := s.stock.AddStock(ctx, p.ID, dto.AddStockRequest{
			Quantity: req.InitialStock,
			UnitCost: req.UnitCost,
			Reason:   "initial stock",
		}, actorID)
		if err != nil {
			return nil, err
		}
		p.OnHandStock = level.OnHandStock
	}
	return productResponse(p), nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return productResponse(p), nil
}

func (s *productService) GetBySKU(ctx context.Context, sku string) (*dto.ProductResponse, error) {
	p, err := s.productRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return productResponse(p), nil
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	products, total, err := s.productRepo.List(ctx, filter)
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
	resp := &dto.ProductListResponse{
		Data:  make([]dto.ProductResponse, 0, len(products)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range products {
		resp.Data = append(resp.Data, *productResponse(&products[i]))
	}
	return resp, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.IsImported != nil {
		p.IsImported = *req.IsImported
	}
	if req.ReorderLevel != nil {
		p.ReorderLevel = *req.ReorderLevel
	}
	if req.LowStockThreshold != nil {
		p.LowStockThreshold = *req.LowStockThreshold
	}
	if err := s.productRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return productResponse(p), nil
}

func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.productRepo.Deactivate(ctx, id)
}

func (s *productService) Reactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.productRepo.Reactivate(ctx, id)
}

func productResponse(p *model.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:                p.ID.String(),
		SKU:               p.SKU,
		Name:              p.Name,
		Description:       p.Description,
		Category:          p.Category,
		Price:             p.Price,
		UnitCost:          p.UnitCost,
		IsImported:        p.IsImported,
		OnHandStock:       p.OnHandStock,
		ReservedStock:     p.ReservedStock,
		AvailableStock:    p.AvailableStock(),
		ReorderLevel:      p.ReorderLevel,
		LowStockThreshold: p.LowStockThreshold,
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
