package repository

import (
	"context"

	"teahaven/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository reads carts for checkout and clears them once an order is
// created. Cart editing endpoints live outside the core and are not part of
// this contract.
type CartRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	// ClearTx removes all items inside the order-creation transaction.
	ClearTx(tx *gorm.DB, cartID uuid.UUID) error
}

type cartRepo struct{ db *gorm.DB }

func NewCartRepository(db *gorm.DB) CartRepository { return &cartRepo{db: db} }

func (r *cartRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	var c model.Cart
	err := r.db.WithContext(ctx).Preload("Items.Product").First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "cart")
	}
	return &c, nil
}

func (r *cartRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	var c model.Cart
	err := r.db.WithContext(ctx).Preload("Items.Product").
		Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		return nil, translate(err, "cart")
	}
	return &c, nil
}

func (r *cartRepo) ClearTx(tx *gorm.DB, cartID uuid.UUID) error {
	return translate(tx.Where("cart_id = ?", cartID).
		Delete(&model.CartItem{}).Error, "cart")
}
