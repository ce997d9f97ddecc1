package infra

import (
	"fmt"

	"imperio/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for every table, then applies the idempotent DDL that GORM tags cannot
// express (partial unique index, check constraints).
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

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates/updates all tables and applies schema patches.
// Integration tests call it directly against a fresh container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Category{},
		&model.Product{},
		&model.DeliveryZone{},
		&model.TillSession{},
		&model.CashMovement{},
		&model.Order{},
		&model.OrderLine{},
		&model.DiningTable{},
		&model.KitchenTicket{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs DDL that must hold regardless of what AutoMigrate
// produced. Each statement is idempotent.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open till session, system wide. Opening a session is a
		// plain INSERT; a second concurrent INSERT fails with 23505.
		{"single open till session", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_till_sessions_single_open
    ON till_sessions (status)
    WHERE status = 'open'`},
		{"cash movement amount positive", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_movements_amount_positive') THEN
    ALTER TABLE cash_movements
      ADD CONSTRAINT chk_cash_movements_amount_positive CHECK (amount > 0);
  END IF;
END $$`},
		{"cash movement kind", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_movements_kind') THEN
    ALTER TABLE cash_movements
      ADD CONSTRAINT chk_cash_movements_kind CHECK (kind IN ('withdrawal', 'deposit', 'sale_proceeds'));
  END IF;
END $$`},
		{"order status", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_orders_status') THEN
    ALTER TABLE orders
      ADD CONSTRAINT chk_orders_status CHECK (status IN ('pending', 'preparing', 'dispatched', 'delivered', 'cancelled'));
  END IF;
END $$`},
		// Dashboard query: live orders by age.
		{"live orders index", `
CREATE INDEX IF NOT EXISTS idx_orders_live
    ON orders (created_at)
    WHERE status NOT IN ('delivered', 'cancelled')`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
