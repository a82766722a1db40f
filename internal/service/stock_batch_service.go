package service

import (
	"context"
	"errors"
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/model"
	"github.com/yehgs/icvng-server-sub003/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BatchWriteHook runs after a single batch was persisted. It must not fail the
// write; StockSyncService.AfterBatchWrite is the production hook.
type BatchWriteHook func(ctx context.Context, productID uuid.UUID)

// ResyncEnqueuer hands product ids to the background resync queue.
type ResyncEnqueuer interface {
	EnqueueResync(ctx context.Context, productIDs []uuid.UUID) error
}

type StockBatchService interface {
	Create(ctx context.Context, req dto.CreateStockBatchRequest) (*dto.StockBatchResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateStockBatchRequest) (*dto.StockBatchResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter repository.StockBatchFilter) (*dto.StockBatchListResponse, error)
	// BulkUpdateStatus never runs the write hook. Callers reconcile the
	// returned products explicitly, or pass Resync to queue it.
	BulkUpdateStatus(ctx context.Context, req dto.BulkBatchStatusRequest) (*dto.BulkBatchStatusResponse, error)
}

type stockBatchService struct {
	store    repository.Store
	hook     BatchWriteHook
	enqueuer ResyncEnqueuer
	now      func() time.Time
}

// NewStockBatchService builds the batch service. hook may be nil (no
// reconciliation); enqueuer may be nil, in which case Resync requests are
// rejected.
func NewStockBatchService(store repository.Store, hook BatchWriteHook, enqueuer ResyncEnqueuer) StockBatchService {
	if hook == nil {
		hook = func(context.Context, uuid.UUID) {}
	}
	return &stockBatchService{store: store, hook: hook, enqueuer: enqueuer, now: time.Now}
}

func (s *stockBatchService) Create(ctx context.Context, req dto.CreateStockBatchRequest) (*dto.StockBatchResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apierror.InvalidArgument("invalid productId")
	}
	if _, err := s.store.Products().FindByID(ctx, productID); err != nil {
		return nil, productErr(productID, err)
	}

	status := model.BatchAvailable
	if req.Status != "" {
		status = model.BatchStatus(req.Status)
		if !status.Valid() {
			return nil, apierror.InvalidArgument("unknown batch status %q", req.Status)
		}
	}

	b := &model.StockBatch{
		ProductID:           productID,
		BatchNumber:         req.BatchNumber,
		Status:              status,
		OriginalQuantity:    req.OriginalQuantity,
		GoodQuantity:        req.GoodQuantity,
		RefurbishedQuantity: req.RefurbishedQuantity,
		DamagedQuantity:     req.DamagedQuantity,
		OnlineStock:         req.OnlineStock,
		OfflineStock:        req.OfflineStock,
		Notes:               req.Notes,
		ReceivedAt:          s.now(),
	}
	if req.ReceivedAt != nil {
		b.ReceivedAt = *req.ReceivedAt
	}
	if err := validateBatch(b); err != nil {
		return nil, err
	}

	if err := s.store.Batches().Create(ctx, b); err != nil {
		return nil, err
	}
	s.hook(ctx, b.ProductID)

	resp := mapBatch(b)
	return &resp, nil
}

func (s *stockBatchService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateStockBatchRequest) (*dto.StockBatchResponse, error) {
	b, err := s.store.Batches().FindByID(ctx, id)
	if err != nil {
		return nil, batchErr(id, err)
	}
	previousProduct := b.ProductID

	if req.ProductID != nil {
		pid, err := uuid.Parse(*req.ProductID)
		if err != nil {
			return nil, apierror.InvalidArgument("invalid productId")
		}
		if pid != b.ProductID {
			if _, err := s.store.Products().FindByID(ctx, pid); err != nil {
				return nil, productErr(pid, err)
			}
			b.ProductID = pid
		}
	}
	if req.Status != nil {
		st := model.BatchStatus(*req.Status)
		if !st.Valid() {
			return nil, apierror.InvalidArgument("unknown batch status %q", *req.Status)
		}
		b.Status = st
	}
	if req.OriginalQuantity != nil {
		b.OriginalQuantity = *req.OriginalQuantity
	}
	if req.GoodQuantity != nil {
		b.GoodQuantity = *req.GoodQuantity
	}
	if req.RefurbishedQuantity != nil {
		b.RefurbishedQuantity = *req.RefurbishedQuantity
	}
	if req.DamagedQuantity != nil {
		b.DamagedQuantity = *req.DamagedQuantity
	}
	if req.OnlineStock != nil {
		b.OnlineStock = *req.OnlineStock
	}
	if req.OfflineStock != nil {
		b.OfflineStock = *req.OfflineStock
	}
	if req.Notes != nil {
		b.Notes = req.Notes
	}
	if err := validateBatch(b); err != nil {
		return nil, err
	}

	if err := s.store.Batches().Save(ctx, b); err != nil {
		return nil, err
	}
	s.hook(ctx, b.ProductID)
	if previousProduct != b.ProductID {
		s.hook(ctx, previousProduct)
	}

	resp := mapBatch(b)
	return &resp, nil
}

func (s *stockBatchService) Delete(ctx context.Context, id uuid.UUID) error {
	b, err := s.store.Batches().FindByID(ctx, id)
	if err != nil {
		return batchErr(id, err)
	}
	if err := s.store.Batches().Delete(ctx, id); err != nil {
		return batchErr(id, err)
	}
	s.hook(ctx, b.ProductID)
	return nil
}

func (s *stockBatchService) List(ctx context.Context, filter repository.StockBatchFilter) (*dto.StockBatchListResponse, error) {
	filter.Page, filter.Limit = repository.BatchPaging.Normalize(filter.Page, filter.Limit)
	batches, total, err := s.store.Batches().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.StockBatchListResponse{
		Data:  make([]dto.StockBatchResponse, 0, len(batches)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range batches {
		out.Data = append(out.Data, mapBatch(&batches[i]))
	}
	return out, nil
}

func (s *stockBatchService) BulkUpdateStatus(ctx context.Context, req dto.BulkBatchStatusRequest) (*dto.BulkBatchStatusResponse, error) {
	status := model.BatchStatus(req.Status)
	if !status.Valid() {
		return nil, apierror.InvalidArgument("unknown batch status %q", req.Status)
	}
	if req.Resync && s.enqueuer == nil {
		return nil, apierror.InvalidArgument("resync queue unavailable")
	}

	ids := make([]uuid.UUID, 0, len(req.BatchIDs))
	for _, raw := range req.BatchIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apierror.InvalidArgument("invalid batch id %q", raw)
		}
		ids = append(ids, id)
	}

	productIDs, err := s.store.Batches().UpdateStatusMany(ctx, ids, status)
	if err != nil {
		return nil, err
	}

	resp := &dto.BulkBatchStatusResponse{
		Updated:            len(ids),
		AffectedProductIDs: make([]string, 0, len(productIDs)),
	}
	for _, pid := range productIDs {
		resp.AffectedProductIDs = append(resp.AffectedProductIDs, pid.String())
	}

	if req.Resync && len(productIDs) > 0 {
		if err := s.enqueuer.EnqueueResync(ctx, productIDs); err != nil {
			// The status change is committed; reconciliation can be retried.
			log.Error().Err(err).Int("products", len(productIDs)).Msg("stock_batch: enqueue resync failed")
		} else {
			resp.ResyncQueued = true
		}
	}
	return resp, nil
}

// validateBatch rejects quality splits larger than the received quantity.
func validateBatch(b *model.StockBatch) error {
	if b.GoodQuantity+b.RefurbishedQuantity+b.DamagedQuantity > b.OriginalQuantity {
		return apierror.InvalidArgument(
			"good %d + refurbished %d + damaged %d exceeds original quantity %d",
			b.GoodQuantity, b.RefurbishedQuantity, b.DamagedQuantity, b.OriginalQuantity)
	}
	return nil
}

func batchErr(id uuid.UUID, err error) error {
	if errors.Is(err, apierror.ErrNotFound) {
		return apierror.NotFound("batch", id)
	}
	return err
}

func mapBatch(b *model.StockBatch) dto.StockBatchResponse {
	return dto.StockBatchResponse{
		ID:                  b.ID.String(),
		ProductID:           b.ProductID.String(),
		BatchNumber:         b.BatchNumber,
		Status:              string(b.Status),
		OriginalQuantity:    b.OriginalQuantity,
		GoodQuantity:        b.GoodQuantity,
		RefurbishedQuantity: b.RefurbishedQuantity,
		DamagedQuantity:     b.DamagedQuantity,
		OnlineStock:         b.OnlineStock,
		OfflineStock:        b.OfflineStock,
		Notes:               b.Notes,
		ReceivedAt:          b.ReceivedAt.UTC().Format(time.RFC3339),
	}
}
