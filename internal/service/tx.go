package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode — stub repositories ignore
// the tx argument).
//
// lockTimeout bounds every row-lock wait inside the transaction: when a lock
// cannot be acquired in time PostgreSQL aborts with SQLSTATE 55P03, which the
// repository layer translates into a retriable Contention error. This keeps
// concurrent reservations against a hot product serializing as backpressure
// instead of blocking indefinitely.
func runTx(ctx context.Context, db *gorm.DB, lockTimeout time.Duration, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
}
