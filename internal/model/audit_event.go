package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is the side-channel record written asynchronously by the audit
// worker after stock and order transitions commit. Failure to write one never
// rolls back the primary operation.
type AuditEvent struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventType  string     `gorm:"not null;index"` // e.g. "stock.reserve", "order.shipped"
	EntityType string     `gorm:"not null"`       // "product" | "order"
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	Payload    []byte     `gorm:"type:jsonb"`
	CreatedAt  time.Time  `gorm:"index"`
}

// TableName keeps the audit trail in its own clearly named table.
func (AuditEvent) TableName() string { return "audit_events" }
