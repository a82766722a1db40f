package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/infra"
	"github.com/yehgs/icvng-server-sub003/internal/metrics"
	"github.com/yehgs/icvng-server-sub003/internal/model"
	"github.com/yehgs/icvng-server-sub003/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const reasonOverrideEnabled = "Manual override enabled"

// SyncOutcome describes what a recompute did to the product row.
type SyncOutcome string

const (
	SyncApplied         SyncOutcome = "applied"
	SyncSkippedOverride SyncOutcome = "skipped_override"
	SyncSkippedMissing  SyncOutcome = "skipped_missing"
)

// SyncResult is the inspectable result of one recompute. The post-write
// trigger discards it; explicit callers (force sync, resync, CLI) report it.
type SyncResult struct {
	ProductID uuid.UUID
	Outcome   SyncOutcome
	Stock     int
	Derived   model.BatchDerived
}

// StockSyncService keeps Product.Stock consistent with active batches unless
// a manual warehouse override owns it.
type StockSyncService interface {
	// RecomputeFromBatches folds active batches into the product. Missing
	// products and enabled overrides are no-ops, not errors.
	RecomputeFromBatches(ctx context.Context, productID uuid.UUID) (SyncResult, error)
	// AfterBatchWrite is the post-write hook for batch persistence. It never
	// returns an error: failures are logged and counted.
	AfterBatchWrite(ctx context.Context, productID uuid.UUID)
	ForceSyncProduct(ctx context.Context, productID uuid.UUID) (*dto.ForceSyncResponse, error)
	DisableOverrideAndSync(ctx context.Context, productID uuid.UUID) (*dto.DisableOverrideResponse, error)
	ApplyWarehouseOverride(ctx context.Context, productID uuid.UUID, req dto.WarehouseOverrideRequest) (*dto.ProductStockResponse, error)
	ValidateStockConsistency(ctx context.Context, productID uuid.UUID) (*dto.StockConsistencyResponse, error)
	// ValidateMultipleProductsStock never fails as a whole; per-product
	// errors are reported as issues of that product.
	ValidateMultipleProductsStock(ctx context.Context, productIDs []uuid.UUID) *dto.MultiStockConsistencyResponse
	ResyncProducts(ctx context.Context, productIDs []uuid.UUID) *dto.ResyncResponse
}

type stockSyncService struct {
	store  repository.Store
	locker infra.Locker
	now    func() time.Time
}

// NewStockSyncService wires the engine. A nil locker falls back to an
// in-process lock, which is enough for a single instance.
func NewStockSyncService(store repository.Store, locker infra.Locker) StockSyncService {
	if locker == nil {
		locker = infra.NewLocalLocker()
	}
	return &stockSyncService{store: store, locker: locker, now: time.Now}
}

func (s *stockSyncService) RecomputeFromBatches(ctx context.Context, productID uuid.UUID) (SyncResult, error) {
	start := time.Now()
	res, err := s.recompute(ctx, s.store, productID)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StockRecomputes.WithLabelValues("error").Inc()
		return res, err
	}
	metrics.StockRecomputes.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// recompute runs against st so DisableOverrideAndSync can reuse it inside
// its transaction.
func (s *stockSyncService) recompute(ctx context.Context, st repository.Store, productID uuid.UUID) (SyncResult, error) {
	res := SyncResult{ProductID: productID}

	p, err := st.Products().FindByID(ctx, productID)
	if errors.Is(err, apierror.ErrNotFound) {
		res.Outcome = SyncSkippedMissing
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("recompute %s: %w", productID, err)
	}
	if p.OverrideEnabled() {
		res.Outcome = SyncSkippedOverride
		res.Stock = p.Stock
		return res, nil
	}

	batches, err := st.Batches().ListActiveByProduct(ctx, productID)
	if err != nil {
		return res, fmt.Errorf("recompute %s: %w", productID, err)
	}
	bd := model.FoldBatches(batches, s.now())

	applied, err := st.Products().ApplyBatchDerived(ctx, productID, bd)
	if err != nil {
		return res, fmt.Errorf("recompute %s: %w", productID, err)
	}
	if !applied {
		// The override was enabled (or the product removed) between the
		// read and the conditional write. Override wins.
		res.Outcome = SyncSkippedOverride
		res.Stock = p.Stock
		return res, nil
	}

	res.Outcome = SyncApplied
	res.Stock = bd.Final()
	res.Derived = bd
	return res, nil
}

func (s *stockSyncService) AfterBatchWrite(ctx context.Context, productID uuid.UUID) {
	res, err := s.RecomputeFromBatches(ctx, productID)
	if err != nil {
		metrics.TriggerFailures.Inc()
		log.Error().
			Err(err).
			Str("product_id", productID.String()).
			Msg("stock_sync: post-write recompute failed")
		return
	}
	log.Debug().
		Str("product_id", productID.String()).
		Str("outcome", string(res.Outcome)).
		Int("stock", res.Stock).
		Msg("stock_sync: recomputed after batch write")
}

func (s *stockSyncService) ForceSyncProduct(ctx context.Context, productID uuid.UUID) (*dto.ForceSyncResponse, error) {
	p, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, productErr(productID, err)
	}
	if p.OverrideEnabled() {
		return &dto.ForceSyncResponse{Synced: false, Reason: reasonOverrideEnabled, CurrentStock: p.Stock}, nil
	}

	res, err := s.RecomputeFromBatches(ctx, productID)
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case SyncSkippedOverride:
		return &dto.ForceSyncResponse{Synced: false, Reason: reasonOverrideEnabled, CurrentStock: res.Stock}, nil
	case SyncSkippedMissing:
		return nil, apierror.NotFound("product", productID)
	}
	return &dto.ForceSyncResponse{Synced: true, Reason: "Synced from stock batches", CurrentStock: res.Stock}, nil
}

// DisableOverrideAndSync turns the override off and recomputes in one
// transaction holding the product row lock, serialised per product by the
// locker so concurrent enable/disable calls cannot interleave.
func (s *stockSyncService) DisableOverrideAndSync(ctx context.Context, productID uuid.UUID) (*dto.DisableOverrideResponse, error) {
	unlock, err := s.lockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res SyncResult
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Products().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		p.WarehouseStock.Enabled = false
		p.WarehouseStock.Source = model.StockSourceBatches
		p.StockSource = model.StockSourceBatches
		if err := tx.Products().Save(ctx, p); err != nil {
			return err
		}
		res, err = s.recompute(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, productErr(productID, err)
	}
	metrics.StockRecomputes.WithLabelValues(string(res.Outcome)).Inc()

	log.Info().
		Str("product_id", productID.String()).
		Int("new_stock", res.Stock).
		Msg("stock_sync: manual override disabled")

	return &dto.DisableOverrideResponse{
		Success:  res.Outcome == SyncApplied,
		NewStock: res.Stock,
		Source:   string(model.StockSourceBatches),
	}, nil
}

func (s *stockSyncService) ApplyWarehouseOverride(ctx context.Context, productID uuid.UUID, req dto.WarehouseOverrideRequest) (*dto.ProductStockResponse, error) {
	unlock, err := s.lockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, productErr(productID, err)
	}

	now := s.now()
	mo := resolveOverride(req)
	if mo.LastUpdated.IsZero() {
		mo.LastUpdated = now
	}
	p.ApplyManualOverride(mo)
	p.GuardOverride(now)
	if err := s.store.Products().Save(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("product_id", productID.String()).
		Int("final_stock", p.WarehouseStock.FinalStock).
		Msg("stock_sync: manual override enabled")

	resp := mapProductStock(p)
	return &resp, nil
}

// resolveOverride defaults every omitted quantity to zero.
func resolveOverride(req dto.WarehouseOverrideRequest) model.ManualOverride {
	mo := model.ManualOverride{
		StockOnArrival: intOrZero(req.StockOnArrival),
		DamagedQty:     intOrZero(req.DamagedQty),
		ExpiredQty:     intOrZero(req.ExpiredQty),
		RefurbishedQty: intOrZero(req.RefurbishedQty),
		FinalStock:     intOrZero(req.FinalStock),
		OnlineStock:    intOrZero(req.OnlineStock),
		OfflineStock:   intOrZero(req.OfflineStock),
		Notes:          req.Notes,
	}
	if req.LastUpdated != nil {
		mo.LastUpdated = *req.LastUpdated
	}
	return mo
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func (s *stockSyncService) ValidateStockConsistency(ctx context.Context, productID uuid.UUID) (*dto.StockConsistencyResponse, error) {
	p, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, productErr(productID, err)
	}

	rep := &dto.StockConsistencyResponse{
		ProductID:        productID,
		Issues:           []string{},
		CurrentStock:     p.Stock,
		StockSource:      string(p.StockSource),
		WarehouseManaged: p.OverrideEnabled(),
	}

	switch w := p.Warehouse().(type) {
	case model.ManualOverride:
		if total := w.QualityTotal(); total != w.StockOnArrival {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Quality breakdown total %d (damaged %d + expired %d + refurbished %d + final %d) does not match stock on arrival %d",
				total, w.DamagedQty, w.ExpiredQty, w.RefurbishedQty, w.FinalStock, w.StockOnArrival))
		}
		if dist := w.OnlineStock + w.OfflineStock; dist > w.FinalStock {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Online %d + offline %d = %d exceeds final stock %d",
				w.OnlineStock, w.OfflineStock, dist, w.FinalStock))
		}
		if p.Stock != w.FinalStock {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Product stock %d does not match warehouse final stock %d", p.Stock, w.FinalStock))
		}
	case model.BatchDerived:
		batches, err := s.store.Batches().ListActiveByProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		expected := model.FoldBatches(batches, s.now()).Final()
		if p.Stock != expected {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Product stock %d does not match active batch total %d", p.Stock, expected))
		}
	}

	rep.IsConsistent = len(rep.Issues) == 0
	return rep, nil
}

func (s *stockSyncService) ValidateMultipleProductsStock(ctx context.Context, productIDs []uuid.UUID) *dto.MultiStockConsistencyResponse {
	out := &dto.MultiStockConsistencyResponse{
		TotalChecked: len(productIDs),
		Results:      []dto.StockConsistencyResponse{},
	}
	for _, id := range productIDs {
		rep, err := s.ValidateStockConsistency(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("product_id", id.String()).Msg("stock_sync: consistency check failed")
			rep = &dto.StockConsistencyResponse{
				ProductID: id,
				Issues:    []string{"Validation failed: " + apierror.Message(err)},
			}
		}
		if rep.IsConsistent {
			out.Consistent++
			continue
		}
		out.Inconsistent++
		out.Results = append(out.Results, *rep)
	}
	return out
}

func (s *stockSyncService) ResyncProducts(ctx context.Context, productIDs []uuid.UUID) *dto.ResyncResponse {
	out := &dto.ResyncResponse{Failures: map[string]string{}}
	seen := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out.Requested++

		res, err := s.RecomputeFromBatches(ctx, id)
		if err != nil {
			out.Failed++
			out.Failures[id.String()] = apierror.Message(err)
			log.Error().Err(err).Str("product_id", id.String()).Msg("stock_sync: resync failed")
			continue
		}
		if res.Outcome == SyncApplied {
			out.Applied++
		} else {
			out.Skipped++
		}
	}
	return out
}

func (s *stockSyncService) lockProduct(ctx context.Context, productID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "product:"+productID.String())
	if err != nil {
		if errors.Is(err, infra.ErrLockBusy) {
			return nil, fmt.Errorf("product %s is being updated: %w", productID, apierror.ErrConflict)
		}
		return nil, apierror.Storage("product.lock", err)
	}
	return unlock, nil
}

// productErr turns a repository not-found into a NotFound naming the product.
func productErr(productID uuid.UUID, err error) error {
	if errors.Is(err, apierror.ErrNotFound) {
		return apierror.NotFound("product", productID)
	}
	return err
}

func mapProductStock(p *model.Product) dto.ProductStockResponse {
	ws := p.WarehouseStock
	resp := dto.ProductStockResponse{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Stock:       p.Stock,
		StockSource: string(p.StockSource),
		WarehouseStock: dto.WarehouseStockResponse{
			Enabled:        ws.Enabled,
			StockOnArrival: ws.StockOnArrival,
			DamagedQty:     ws.DamagedQty,
			ExpiredQty:     ws.ExpiredQty,
			RefurbishedQty: ws.RefurbishedQty,
			FinalStock:     ws.FinalStock,
			OnlineStock:    ws.OnlineStock,
			OfflineStock:   ws.OfflineStock,
			Notes:          ws.Notes,
			Source:         string(ws.Source),
		},
	}
	if ws.LastUpdated != nil {
		s := ws.LastUpdated.UTC().Format(time.RFC3339)
		resp.WarehouseStock.LastUpdated = &s
	}
	return resp
}
