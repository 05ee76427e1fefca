package repository

import (
	"context"

	"teahaven/internal/dto"
	"teahaven/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"time"
)

// LedgerRepository appends and reads the immutable stock ledger. There is no
// update or delete: entries are written once, in the same transaction as the
// counter mutation they describe.
type LedgerRepository interface {
	CreateTx(tx *gorm.DB, e *model.LedgerEntry) error
	ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.LedgerFilter) ([]model.LedgerEntry, int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.LedgerEntry, error)
	// ReplayOnHand recomputes on-hand stock from the full entry sequence.
	// Used by reconciliation to verify the replay invariant.
	ReplayOnHand(ctx context.Context, productID uuid.UUID) (int, error)
	// OnHandAt reconstructs on-hand stock as of a past instant.
	OnHandAt(ctx context.Context, productID uuid.UUID, at time.Time) (int, error)
	// InventoryValue sums on-hand stock times unit cost across active products.
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) CreateTx(tx *gorm.DB, e *model.LedgerEntry) error {
	return translate(tx.Create(e).Error, "ledger entry")
}

func (r *ledgerRepo) ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.LedgerFilter) ([]model.LedgerEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("product_id = ?", productID)
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var entries []model.LedgerEntry
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *ledgerRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) ReplayOnHand(ctx context.Context, productID uuid.UUID) (int, error) {
	var onHand int
	err := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity_change), 0)").
		Scan(&onHand).Error
	return onHand, err
}

func (r *ledgerRepo) OnHandAt(ctx context.Context, productID uuid.UUID, at time.Time) (int, error) {
	var onHand int
	err := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("product_id = ? AND created_at <= ?", productID, at).
		Select("COALESCE(SUM(quantity_change), 0)").
		Scan(&onHand).Error
	return onHand, err
}

func (r *ledgerRepo) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = true AND unit_cost IS NOT NULL").
		Select("COALESCE(SUM(on_hand_stock * unit_cost), 0)").
		Scan(&value).Error
	return value, err
}
