package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"teahaven/internal/dto"
	"teahaven/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository persists orders and their immutable line-item snapshots.
type OrderRepository interface {
	CreateTx(tx *gorm.DB, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// FindByPaymentSessionID is the post-payment idempotency lookup.
	FindByPaymentSessionID(ctx context.Context, sessionID string) (*model.Order, error)
	// FindForUpdateTx locks the order row for a state transition. Transition
	// guards must be evaluated against this read, never against an earlier
	// unlocked one.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error)
	SaveTx(tx *gorm.DB, o *model.Order) error
	// NextOrderNumberTx issues the next TH-<year>-<seq> number. It must be
	// called inside the order-creation transaction.
	NextOrderNumberTx(tx *gorm.DB, year int) (string, error)
	// ListStalePending returns pending+unpaid orders older than cutoff, for
	// the expiry sweeper.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
	DB() *gorm.DB
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

func (r *orderRepo) CreateTx(tx *gorm.DB, o *model.Order) error {
	return translate(tx.Create(o).Error, "order")
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (r *orderRepo) FindByPaymentSessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("payment_session_id = ?", sessionID).
		First(&o).Error
	if err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (r *orderRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		First(&o, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (r *orderRepo) List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", filter.PaymentStatus)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var orders []model.Order
	err := q.Preload("Items").Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) SaveTx(tx *gorm.DB, o *model.Order) error {
	return translate(tx.Save(o).Error, "order")
}

// NextOrderNumberTx serializes number generation with a transaction-scoped
// advisory lock keyed by year, then derives the next value from the highest
// existing suffix. The advisory lock (rather than FOR UPDATE on the max row)
// covers the empty-table case where there is no row to lock.
func (r *orderRepo) NextOrderNumberTx(tx *gorm.DB, year int) (string, error) {
	prefix := fmt.Sprintf("TH-%d-", year)

	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", err
	}

	var last string
	err := tx.Model(&model.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq), nil
}

func (r *orderRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status = ? AND payment_status = ? AND created_at < ?",
			model.OrderPending, model.PaymentPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
