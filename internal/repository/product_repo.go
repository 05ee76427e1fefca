package repository

import (
	"context"

	"teahaven/internal/dto"
	"teahaven/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
//
// The *Tx methods run inside a caller-owned transaction; the ForUpdate
// variants take `SELECT ... FOR UPDATE` row locks and are the only reads the
// stock engine is allowed to mutate counters from.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error)
	// Update persists catalog fields; stock counters are never written here.
	Update(ctx context.Context, p *model.Product) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
	ListBelowReorderLevel(ctx context.Context) ([]model.Product, error)

	// Used inside stock transactions — callers must pass the tx instance.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// FindBatchForUpdateTx locks all rows in ascending id order so that
	// concurrent multi-item reservations never deadlock on lock ordering.
	FindBatchForUpdateTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	UpdateCountersTx(tx *gorm.DB, id uuid.UUID, onHand, reserved int) error
	UpdateUnitCostTx(tx *gorm.DB, id uuid.UUID, cost decimal.Decimal) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return translate(r.db.WithContext(ctx).Create(p).Error, "product")
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, translate(err, "product")
}

func (r *productRepo) List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})

	// Active filter: "false" = inactive, "all" = everything, default = active only
	switch filter.Active {
	case "false":
		q = q.Where("is_active = false")
	case "all":
		// no filter
	default:
		q = q.Where("is_active = true")
	}

	if filter.SKU != "" {
		q = q.Where("sku = ?", filter.SKU)
	}
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	err := q.Order("name ASC").Limit(limit).Offset((page - 1) * limit).Find(&products).Error
	return products, total, err
}

// Update writes catalog columns only. The counter columns are owned by the
// stock engine; omitting them here keeps a catalog edit from writing back
// counters read before a concurrent reservation committed.
func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return translate(r.db.WithContext(ctx).Model(p).
		Select("*").
		Omit("on_hand_stock", "reserved_stock", "created_at").
		Updates(p).Error, "product")
}

func (r *productRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).Update("is_active", false).Error, "product")
}

func (r *productRepo) Reactivate(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).Update("is_active", true).Error, "product")
}

func (r *productRepo) ListBelowReorderLevel(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = true").
		Where("on_hand_stock <= reorder_level OR on_hand_stock <= low_stock_threshold").
		Order("on_hand_stock ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (r *productRepo) FindBatchForUpdateTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	return products, translate(err, "product")
}

func (r *productRepo) UpdateCountersTx(tx *gorm.DB, id uuid.UUID, onHand, reserved int) error {
	return translate(tx.Model(&model.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"on_hand_stock":  onHand,
			"reserved_stock": reserved,
		}).Error, "product")
}

func (r *productRepo) UpdateUnitCostTx(tx *gorm.DB, id uuid.UUID, cost decimal.Decimal) error {
	return translate(tx.Model(&model.Product{}).Where("id = ?", id).
		Update("unit_cost", cost).Error, "product")
}

func (r *productRepo) DB() *gorm.DB { return r.db }

// normalizePage clamps paging inputs to sane bounds.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return page, limit
}
