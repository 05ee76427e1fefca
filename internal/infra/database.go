package infra

import (
	"fmt"

	"teahaven/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that
// GORM cannot express (partial indexes, CHECK constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.AutoMigrate(
		&model.Product{},
		&model.LedgerEntry{},
		&model.Order{},
		&model.OrderItem{},
		&model.Cart{},
		&model.CartItem{},
		&model.Address{},
		&model.AuditEvent{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle.
// Each statement uses IF NOT EXISTS / existence-guard semantics so re-running
// on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Stock counters can never go negative and reservations can never
		// exceed physical stock. The stock engine enforces this in code; the
		// constraints catch any writer that bypasses it.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_on_hand_nonneg') THEN
		    ALTER TABLE products ADD CONSTRAINT chk_products_on_hand_nonneg
		        CHECK (on_hand_stock >= 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_reserved_bounds') THEN
		    ALTER TABLE products ADD CONSTRAINT chk_products_reserved_bounds
		        CHECK (reserved_stock >= 0 AND reserved_stock <= on_hand_stock);
		  END IF;
		END $$`,
		// Partial index for the stale-pending-order sweeper query.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_orders_stale_pending') THEN
		    CREATE INDEX idx_orders_stale_pending
		        ON orders (created_at)
		        WHERE status = 'pending' AND payment_status = 'pending';
		  END IF;
		END $$`,
		// Ledger replay reads a product's entries in creation order.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_stock_ledger_product_created') THEN
		    CREATE INDEX idx_stock_ledger_product_created
		        ON stock_ledger (product_id, created_at);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}

// RunMigrations applies the schema for integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.LedgerEntry{},
		&model.Order{},
		&model.OrderItem{},
		&model.Cart{},
		&model.CartItem{},
		&model.Address{},
		&model.AuditEvent{},
	); err != nil {
		return err
	}
	return applySchemaPatches(db)
}
