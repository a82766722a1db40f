package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/infra"
	"github.com/yehgs/icvng-server-sub003/internal/model"
	"github.com/yehgs/icvng-server-sub003/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func batch(productID uuid.UUID, status model.BatchStatus, good, refurb int) model.StockBatch {
	return model.StockBatch{
		ProductID:           productID,
		BatchNumber:         "B-" + uuid.NewString()[:8],
		Status:              status,
		OriginalQuantity:    good + refurb + 1,
		GoodQuantity:        good,
		RefurbishedQuantity: refurb,
		DamagedQuantity:     1,
		OnlineStock:         good,
		ReceivedAt:          time.Now(),
	}
}

func overrideProduct(store *memStore, final int) model.Product {
	p := model.Product{SKU: "SKU-OV", Name: "Override"}
	p.ApplyManualOverride(model.ManualOverride{
		StockOnArrival: final,
		FinalStock:     final,
		OnlineStock:    final,
	})
	return store.seedProduct(p)
}

// ── RecomputeFromBatches ──────────────────────────────────────────────────────

func TestRecompute_SumsActiveBatchesOnly(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))
	store.seedBatch(batch(p.ID, model.BatchPartiallyAllocated, 3, 0))
	store.seedBatch(batch(p.ID, model.BatchReceived, 4, 1))
	store.seedBatch(batch(p.ID, model.BatchDepleted, 100, 0))
	store.seedBatch(batch(p.ID, model.BatchCancelled, 0, 50))

	svc := service.NewStockSyncService(store, nil)
	res, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, service.SyncApplied, res.Outcome)
	assert.Equal(t, 20, res.Stock)

	got := store.product(p.ID)
	assert.Equal(t, 20, got.Stock)
	assert.Equal(t, model.StockSourceBatches, got.StockSource)
	assert.False(t, got.WarehouseStock.Enabled, "batch totals must not enable the override")
	assert.Equal(t, 20, got.WarehouseStock.FinalStock)
	assert.Equal(t, 3, got.WarehouseStock.RefurbishedQty)
	assert.Equal(t, 0, got.WarehouseStock.ExpiredQty)
	assert.Equal(t, 17, got.WarehouseStock.OnlineStock)
}

func TestRecompute_NoActiveBatchesYieldsZero(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder", Stock: 33})
	store.seedBatch(batch(p.ID, model.BatchExpired, 5, 5))

	svc := service.NewStockSyncService(store, nil)
	res, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, service.SyncApplied, res.Outcome)
	assert.Equal(t, 0, store.product(p.ID).Stock)
}

func TestRecompute_OverrideIsNoOp(t *testing.T) {
	store := newMemStore()
	p := overrideProduct(store, 50)
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))
	before := store.product(p.ID)

	svc := service.NewStockSyncService(store, nil)
	res, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, service.SyncSkippedOverride, res.Outcome)
	assert.Equal(t, 0, store.applyCalls, "no write may be attempted")
	assert.Equal(t, before, store.product(p.ID))
}

func TestRecompute_MissingProductIsSilent(t *testing.T) {
	store := newMemStore()
	svc := service.NewStockSyncService(store, nil)

	res, err := svc.RecomputeFromBatches(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, service.SyncSkippedMissing, res.Outcome)
	assert.Equal(t, 0, store.applyCalls)
}

func TestRecompute_Idempotent(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 7, 3))
	svc := service.NewStockSyncService(store, nil)

	first, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)
	second, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Stock, second.Stock)
	assert.Equal(t, 10, store.product(p.ID).Stock)
}

func TestRecompute_OverrideEnabledConcurrentlyWins(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))

	// Simulates an admin enabling the override between read and write.
	store.beforeApply = func(s *memStore) {
		cur := s.product(p.ID)
		cur.ApplyManualOverride(model.ManualOverride{StockOnArrival: 50, FinalStock: 50})
		s.seedProduct(cur)
	}

	svc := service.NewStockSyncService(store, nil)
	res, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, service.SyncSkippedOverride, res.Outcome)
	assert.Equal(t, 50, store.product(p.ID).Stock)
}

func TestRecompute_StorageFailurePropagates(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.errListActive = errStorage

	svc := service.NewStockSyncService(store, nil)
	_, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.Error(t, err)
	assert.True(t, apierror.IsStorage(err))
}

func TestAfterBatchWrite_SwallowsFailures(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.errApply = errStorage

	svc := service.NewStockSyncService(store, nil)
	assert.NotPanics(t, func() {
		svc.AfterBatchWrite(context.Background(), p.ID)
	})
}

// ── ForceSyncProduct ──────────────────────────────────────────────────────────

func TestForceSync_NotFound(t *testing.T) {
	svc := service.NewStockSyncService(newMemStore(), nil)

	_, err := svc.ForceSyncProduct(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestForceSync_OverrideEnabled(t *testing.T) {
	store := newMemStore()
	p := overrideProduct(store, 50)
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))

	svc := service.NewStockSyncService(store, nil)
	rep, err := svc.ForceSyncProduct(context.Background(), p.ID)
	require.NoError(t, err)

	assert.False(t, rep.Synced)
	assert.Equal(t, "Manual override enabled", rep.Reason)
	assert.Equal(t, 50, rep.CurrentStock)
	assert.Equal(t, 0, store.applyCalls)
}

func TestForceSync_Synced(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder", Stock: 99})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))

	svc := service.NewStockSyncService(store, nil)
	rep, err := svc.ForceSyncProduct(context.Background(), p.ID)
	require.NoError(t, err)

	assert.True(t, rep.Synced)
	assert.Equal(t, 12, rep.CurrentStock)
}

// ── Override lifecycle ────────────────────────────────────────────────────────

func TestOverrideLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	syncSvc := service.NewStockSyncService(store, nil)
	batchSvc := service.NewStockBatchService(store, syncSvc.AfterBatchWrite, nil)

	p := store.seedProduct(model.Product{SKU: "SKU-P", Name: "Espresso machine"})

	// Batch A for P → stock 12 from batches.
	created, err := batchSvc.Create(ctx, dto.CreateStockBatchRequest{
		ProductID:           p.ID.String(),
		BatchNumber:         "A",
		Status:              string(model.BatchAvailable),
		OriginalQuantity:    12,
		GoodQuantity:        10,
		RefurbishedQuantity: 2,
	})
	require.NoError(t, err)
	got := store.product(p.ID)
	assert.Equal(t, 12, got.Stock)
	assert.Equal(t, model.StockSourceBatches, got.StockSource)

	// Override to 50.
	_, err = syncSvc.ApplyWarehouseOverride(ctx, p.ID, dto.WarehouseOverrideRequest{
		StockOnArrival: intPtr(50),
		FinalStock:     intPtr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, store.product(p.ID).Stock)

	// A batch update no longer moves stock.
	batchID, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	_, err = batchSvc.Update(ctx, batchID, dto.UpdateStockBatchRequest{GoodQuantity: intPtr(5)})
	require.NoError(t, err)
	got = store.product(p.ID)
	assert.Equal(t, 50, got.Stock)
	assert.Equal(t, model.StockSourceWarehouseManual, got.StockSource)

	// Disabling the override recomputes from batches (5 good + 2 refurbished).
	rep, err := syncSvc.DisableOverrideAndSync(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, 7, rep.NewStock)
	assert.Equal(t, string(model.StockSourceBatches), rep.Source)

	got = store.product(p.ID)
	assert.False(t, got.WarehouseStock.Enabled)
	assert.Equal(t, 7, got.Stock)
	assert.Equal(t, model.StockSourceBatches, got.StockSource)
}

func TestDisableOverride_NotFound(t *testing.T) {
	store := newMemStore()
	svc := service.NewStockSyncService(store, nil)

	_, err := svc.DisableOverrideAndSync(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestDisableOverride_RollsBackOnRecomputeFailure(t *testing.T) {
	store := newMemStore()
	p := overrideProduct(store, 50)
	store.errApply = errStorage

	svc := service.NewStockSyncService(store, nil)
	_, err := svc.DisableOverrideAndSync(context.Background(), p.ID)
	require.Error(t, err)

	got := store.product(p.ID)
	assert.True(t, got.WarehouseStock.Enabled, "override flag must survive a failed transaction")
	assert.Equal(t, 50, got.Stock)
}

func TestDisableOverride_LockBusyIsConflict(t *testing.T) {
	store := newMemStore()
	p := overrideProduct(store, 50)
	locker := infra.NewLocalLocker()
	svc := service.NewStockSyncService(store, locker)

	unlock, err := locker.Lock(context.Background(), "product:"+p.ID.String())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.DisableOverrideAndSync(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrConflict))
}

func TestDisableOverride_ConcurrentCallsConverge(t *testing.T) {
	store := newMemStore()
	p := overrideProduct(store, 50)
	store.seedBatch(batch(p.ID, model.BatchAvailable, 8, 1))
	svc := service.NewStockSyncService(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.DisableOverrideAndSync(context.Background(), p.ID)
		}()
	}
	wg.Wait()

	got := store.product(p.ID)
	assert.False(t, got.WarehouseStock.Enabled)
	assert.Equal(t, 9, got.Stock)
}

func TestApplyWarehouseOverride_DefaultsAndGuard(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder", Stock: 3})
	svc := service.NewStockSyncService(store, nil)

	resp, err := svc.ApplyWarehouseOverride(context.Background(), p.ID, dto.WarehouseOverrideRequest{
		FinalStock: intPtr(40),
	})
	require.NoError(t, err)

	assert.Equal(t, 40, resp.Stock)
	assert.Equal(t, string(model.StockSourceWarehouseManual), resp.StockSource)
	assert.True(t, resp.WarehouseStock.Enabled)
	assert.Equal(t, 0, resp.WarehouseStock.DamagedQty)
	assert.Equal(t, 0, resp.WarehouseStock.StockOnArrival)
	assert.NotNil(t, resp.WarehouseStock.LastUpdated)

	got := store.product(p.ID)
	assert.Equal(t, 40, got.Stock)
	assert.Equal(t, model.StockSourceWarehouseManual, got.WarehouseStock.Source)
}

func TestApplyWarehouseOverride_NotFound(t *testing.T) {
	svc := service.NewStockSyncService(newMemStore(), nil)

	_, err := svc.ApplyWarehouseOverride(context.Background(), uuid.New(), dto.WarehouseOverrideRequest{})
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

// ── Consistency ───────────────────────────────────────────────────────────────

func TestConsistency_FreshlyRecomputedIsConsistent(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder"})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))
	svc := service.NewStockSyncService(store, nil)

	_, err := svc.RecomputeFromBatches(context.Background(), p.ID)
	require.NoError(t, err)

	rep, err := svc.ValidateStockConsistency(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, rep.IsConsistent)
	assert.Empty(t, rep.Issues)
	assert.False(t, rep.WarehouseManaged)
}

func TestConsistency_BatchMismatch(t *testing.T) {
	store := newMemStore()
	p := store.seedProduct(model.Product{SKU: "SKU-1", Name: "Grinder", Stock: 4})
	store.seedBatch(batch(p.ID, model.BatchAvailable, 10, 2))
	svc := service.NewStockSyncService(store, nil)

	rep, err := svc.ValidateStockConsistency(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, rep.IsConsistent)
	require.Len(t, rep.Issues, 1)
	assert.Contains(t, rep.Issues[0], "4")
	assert.Contains(t, rep.Issues[0], "12")
}

func TestConsistency_OverrideQualityMismatch(t *testing.T) {
	store := newMemStore()
	p := model.Product{SKU: "SKU-1", Name: "Grinder"}
	p.ApplyManualOverride(model.ManualOverride{
		StockOnArrival: 100,
		DamagedQty:     5,
		ExpiredQty:     2,
		RefurbishedQty: 3,
		FinalStock:     80,
		OnlineStock:    40,
		OfflineStock:   40,
	})
	p = store.seedProduct(p)
	svc := service.NewStockSyncService(store, nil)

	rep, err := svc.ValidateStockConsistency(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, rep.IsConsistent)
	assert.True(t, rep.WarehouseManaged)
	require.Len(t, rep.Issues, 1)
	assert.Contains(t, rep.Issues[0], "90")
	assert.Contains(t, rep.Issues[0], "100")
}

func TestConsistency_OverrideChecksDoNotShortCircuit(t *testing.T) {
	store := newMemStore()
	p := model.Product{SKU: "SKU-1", Name: "Grinder"}
	p.ApplyManualOverride(model.ManualOverride{
		StockOnArrival: 10,
		FinalStock:     5,
		OnlineStock:    4,
		OfflineStock:   4,
	})
	p = store.seedProduct(p)
	// Corrupt stock behind the guard's back.
	p.Stock = 1
	store.seedProduct(p)

	svc := service.NewStockSyncService(store, nil)
	rep, err := svc.ValidateStockConsistency(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, rep.Issues, 3)
}

func TestConsistency_NotFound(t *testing.T) {
	svc := service.NewStockSyncService(newMemStore(), nil)
	_, err := svc.ValidateStockConsistency(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestValidateMultiple_MixedList(t *testing.T) {
	store := newMemStore()
	svc := service.NewStockSyncService(store, nil)

	good := store.seedProduct(model.Product{SKU: "SKU-G", Name: "Good"})
	store.seedBatch(batch(good.ID, model.BatchAvailable, 3, 0))
	_, err := svc.RecomputeFromBatches(context.Background(), good.ID)
	require.NoError(t, err)

	drifted := store.seedProduct(model.Product{SKU: "SKU-D", Name: "Drifted", Stock: 9})
	store.seedBatch(batch(drifted.ID, model.BatchAvailable, 1, 0))
	missing := uuid.New()

	out := svc.ValidateMultipleProductsStock(context.Background(), []uuid.UUID{good.ID, drifted.ID, missing})

	assert.Equal(t, 3, out.TotalChecked)
	assert.Equal(t, 1, out.Consistent)
	assert.Equal(t, 2, out.Inconsistent)
	require.Len(t, out.Results, 2)

	ids := []uuid.UUID{out.Results[0].ProductID, out.Results[1].ProductID}
	assert.ElementsMatch(t, []uuid.UUID{drifted.ID, missing}, ids)
	for _, r := range out.Results {
		if r.ProductID == missing {
			require.Len(t, r.Issues, 1)
			assert.True(t, strings.HasPrefix(r.Issues[0], "Validation failed: "))
		}
	}
}

func TestResyncProducts_CountsOutcomes(t *testing.T) {
	store := newMemStore()
	svc := service.NewStockSyncService(store, nil)

	a := store.seedProduct(model.Product{SKU: "SKU-A", Name: "A"})
	store.seedBatch(batch(a.ID, model.BatchAvailable, 2, 0))
	ov := overrideProduct(store, 10)
	missing := uuid.New()

	out := svc.ResyncProducts(context.Background(), []uuid.UUID{a.ID, ov.ID, missing, a.ID})

	assert.Equal(t, 3, out.Requested, "duplicates are collapsed")
	assert.Equal(t, 1, out.Applied)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, 2, store.product(a.ID).Stock)
}

func TestResyncProducts_IsolatesFailures(t *testing.T) {
	store := newMemStore()
	svc := service.NewStockSyncService(store, nil)
	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		p := store.seedProduct(model.Product{SKU: fmt.Sprintf("SKU-%d", i), Name: "P"})
		ids = append(ids, p.ID)
	}
	store.errApply = errStorage

	out := svc.ResyncProducts(context.Background(), ids)
	assert.Equal(t, 3, out.Failed)
	assert.Len(t, out.Failures, 3)
	for _, msg := range out.Failures {
		assert.Equal(t, "Internal server error", msg)
	}
}
