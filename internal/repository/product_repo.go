package repository

import (
	"context"

	"github.com/yehgs/icvng-server-sub003/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the product operations the stock engine needs.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// Save writes the full row; the model's BeforeSave guard runs first.
	Save(ctx context.Context, p *model.Product) error
	// ApplyBatchDerived writes batch totals only while the override is
	// disabled. It reports false when no row matched (missing product or
	// override enabled in the meantime).
	ApplyBatchDerived(ctx context.Context, id uuid.UUID, bd model.BatchDerived) (bool, error)
	// ListIDs pages through active product ids ordered by id.
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return translate("product.create", r.db.WithContext(ctx).Create(p).Error)
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate("product.find", err)
	}
	return &p, nil
}

func (r *productRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate("product.find_for_update", err)
	}
	return &p, nil
}

func (r *productRepo) Save(ctx context.Context, p *model.Product) error {
	return translate("product.save", r.db.WithContext(ctx).Save(p).Error)
}

func (r *productRepo) ApplyBatchDerived(ctx context.Context, id uuid.UUID, bd model.BatchDerived) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND warehouse_enabled = false", id).
		Updates(model.BatchDerivedColumns(bd))
	if res.Error != nil {
		return false, translate("product.apply_batch_derived", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepo) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit < 1 || limit > 1000 {
		limit = 200
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("active = true AND id > ?", after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, translate("product.list_ids", err)
}
