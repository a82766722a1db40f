package repository

import (
	"context"

	"github.com/yehgs/icvng-server-sub003/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockBatchFilter defines filters for listing batches of one product.
type StockBatchFilter struct {
	ProductID  uuid.UUID
	ActiveOnly bool
	Page       int
	Limit      int
}

// StockBatchRepository is the persistence contract for stock batches. None of
// its methods trigger a stock recompute; that is the service's job.
type StockBatchRepository interface {
	Create(ctx context.Context, b *model.StockBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error)
	Save(ctx context.Context, b *model.StockBatch) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActiveByProduct returns batches whose status is in the active set.
	ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error)
	List(ctx context.Context, filter StockBatchFilter) ([]model.StockBatch, int64, error)
	// UpdateStatusMany sets status on every listed batch and returns the
	// distinct product ids touched.
	UpdateStatusMany(ctx context.Context, ids []uuid.UUID, status model.BatchStatus) ([]uuid.UUID, error)
}

type stockBatchRepo struct{ db *gorm.DB }

func NewStockBatchRepository(db *gorm.DB) StockBatchRepository { return &stockBatchRepo{db: db} }

func (r *stockBatchRepo) Create(ctx context.Context, b *model.StockBatch) error {
	return translate("batch.create", r.db.WithContext(ctx).Create(b).Error)
}

func (r *stockBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error) {
	var b model.StockBatch
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate("batch.find", err)
	}
	return &b, nil
}

func (r *stockBatchRepo) Save(ctx context.Context, b *model.StockBatch) error {
	return translate("batch.save", r.db.WithContext(ctx).Save(b).Error)
}

func (r *stockBatchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.StockBatch{}, "id = ?", id)
	if res.Error != nil {
		return translate("batch.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("batch.delete", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *stockBatchRepo) ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status IN ?", productID, model.ActiveBatchStatuses).
		Order("received_at ASC").
		Find(&batches).Error
	return batches, translate("batch.list_active", err)
}

func (r *stockBatchRepo) List(ctx context.Context, filter StockBatchFilter) ([]model.StockBatch, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockBatch{}).Where("product_id = ?", filter.ProductID)
	if filter.ActiveOnly {
		q = q.Where("status IN ?", model.ActiveBatchStatuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("batch.count", err)
	}

	page, limit := BatchPaging.Normalize(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	var batches []model.StockBatch
	err := q.Order("received_at DESC").Offset(offset).Limit(limit).Find(&batches).Error
	return batches, total, translate("batch.list", err)
}

func (r *stockBatchRepo) UpdateStatusMany(ctx context.Context, ids []uuid.UUID, status model.BatchStatus) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var productIDs []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.StockBatch{}).
			Where("id IN ?", ids).
			Distinct().
			Pluck("product_id", &productIDs).Error; err != nil {
			return err
		}
		return tx.Model(&model.StockBatch{}).
			Where("id IN ?", ids).
			Update("status", status).Error
	})
	if err != nil {
		return nil, translate("batch.update_status_many", err)
	}
	return productIDs, nil
}
