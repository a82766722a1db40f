package repository

import (
	"context"

	"github.com/yehgs/icvng-server-sub003/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectPricingRepository persists pricing records and their ledger.
type DirectPricingRepository interface {
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*model.DirectPricing, error)
	// CreateIfAbsent inserts rec unless an active record already exists for
	// the product. It never fails on the uniqueness conflict.
	CreateIfAbsent(ctx context.Context, rec *model.DirectPricing) error
	// SaveWithHistory updates the record and inserts entry in one transaction.
	SaveWithHistory(ctx context.Context, rec *model.DirectPricing, entry *model.DirectPriceHistory) error
	Save(ctx context.Context, rec *model.DirectPricing) error
	// ListHistory returns ledger rows for a product, newest first.
	ListHistory(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.DirectPriceHistory, int64, error)
}

type directPricingRepo struct{ db *gorm.DB }

func NewDirectPricingRepository(db *gorm.DB) DirectPricingRepository {
	return &directPricingRepo{db: db}
}

func (r *directPricingRepo) FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*model.DirectPricing, error) {
	var rec model.DirectPricing
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = true", productID).
		First(&rec).Error
	if err != nil {
		return nil, translate("pricing.find_active", err)
	}
	return &rec, nil
}

func (r *directPricingRepo) CreateIfAbsent(ctx context.Context, rec *model.DirectPricing) error {
	// Conflict target is the partial unique index on (product_id) WHERE is_active.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("History").
		Create(rec).Error
	return translate("pricing.create", err)
}

func (r *directPricingRepo) SaveWithHistory(ctx context.Context, rec *model.DirectPricing, entry *model.DirectPriceHistory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("History").Save(rec).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
	return translate("pricing.save_with_history", err)
}

func (r *directPricingRepo) Save(ctx context.Context, rec *model.DirectPricing) error {
	return translate("pricing.save", r.db.WithContext(ctx).Omit("History").Save(rec).Error)
}

func (r *directPricingRepo) ListHistory(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.DirectPriceHistory, int64, error) {
	page, limit = HistoryPaging.Normalize(page, limit)

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.DirectPriceHistory{}).
		Where("product_id = ?", productID).
		Count(&total).Error; err != nil {
		return nil, 0, translate("pricing.history_count", err)
	}

	var rows []model.DirectPriceHistory
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, translate("pricing.history_list", err)
	}
	return rows, total, nil
}
