package repository

import (
	"context"

	"teahaven/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddressRepository resolves shipping addresses for ownership checks and
// shipping-rate lookups.
type AddressRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Address, error)
}

type addressRepo struct{ db *gorm.DB }

func NewAddressRepository(db *gorm.DB) AddressRepository { return &addressRepo{db: db} }

func (r *addressRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	var a model.Address
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, "address")
	}
	return &a, nil
}
