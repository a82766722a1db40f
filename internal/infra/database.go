package infra

import (
	"fmt"

	"github.com/yehgs/icvng-server-sub003/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseOptions tunes the connection pool and migration behaviour.
type DatabaseOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// NewDatabase establishes a GORM connection backed by pgx, optionally runs
// AutoMigrate for the stock and pricing tables, then applies the idempotent
// SQL patches GORM cannot express (partial indexes).
func NewDatabase(dsn string, opts DatabaseOptions) (*gorm.DB, error) {
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
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)

	if opts.AutoMigrate {
		if err := RunMigrations(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// RunMigrations creates / updates the tables owned by this service and then
// applies schema patches. Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.StockBatch{},
		&model.DirectPricing{},
		&model.DirectPriceHistory{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate
// cannot handle on its own. Each statement is guarded by an existence check so
// re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One active pricing record per product. CreateIfAbsent relies on it.
		{"partial unique index ux_direct_pricings_product_active", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'ux_direct_pricings_product_active') THEN
    CREATE UNIQUE INDEX ux_direct_pricings_product_active
        ON direct_pricings (product_id)
        WHERE is_active;
  END IF;
END $$`},
		// Recompute reads active batches per product on every batch write.
		{"partial index idx_stock_batches_active", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_stock_batches_active') THEN
    CREATE INDEX idx_stock_batches_active
        ON stock_batches (product_id)
        WHERE status IN ('AVAILABLE', 'PARTIALLY_ALLOCATED', 'RECEIVED');
  END IF;
END $$`},
		// The ledger is append-only; reject UPDATE and DELETE at the database.
		{"append-only trigger on direct_price_history", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_proc WHERE proname = 'direct_price_history_immutable') THEN
    CREATE FUNCTION direct_price_history_immutable() RETURNS trigger AS $f$
    BEGIN
      RAISE EXCEPTION 'direct_price_history is append-only';
    END;
    $f$ LANGUAGE plpgsql;
  END IF;
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_direct_price_history_immutable') THEN
    CREATE TRIGGER trg_direct_price_history_immutable
        BEFORE UPDATE OR DELETE ON direct_price_history
        FOR EACH ROW EXECUTE FUNCTION direct_price_history_immutable();
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
