package repository

import (
	"context"

	"teahaven/internal/model"

	"gorm.io/gorm"
)

// AuditRepository persists side-channel audit events. Writes happen outside
// the primary transaction, from the async worker.
type AuditRepository interface {
	Create(ctx context.Context, e *model.AuditEvent) error
}

type auditRepo struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepo{db: db} }

func (r *auditRepo) Create(ctx context.Context, e *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}
