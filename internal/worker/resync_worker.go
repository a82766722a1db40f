package worker

// resync_worker.go
// Processes jobs from QueueStockResync, queued by bulk batch status updates.
// Products that still fail after the retries are moved to the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ResyncJobPayload is the job body sent to QueueStockResync.
type ResyncJobPayload struct {
	ProductIDs []string `json:"product_ids"`
}

// Resyncer recomputes stock for a set of products.
type Resyncer interface {
	ResyncProducts(ctx context.Context, productIDs []uuid.UUID) *dto.ResyncResponse
}

type ResyncWorker struct {
	resyncer    Resyncer
	rdb         *redis.Client
	maxAttempts int
	backoff     time.Duration
}

// NewResyncWorker creates the worker. rdb is only used for the DLQ.
func NewResyncWorker(resyncer Resyncer, rdb *redis.Client, maxAttempts int) *ResyncWorker {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &ResyncWorker{resyncer: resyncer, rdb: rdb, maxAttempts: maxAttempts, backoff: time.Second}
}

// Process resyncs every product in the payload. Only products that failed
// are retried; the rest of the job is not repeated.
func (w *ResyncWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ResyncJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("resync_worker: invalid payload")
		return
	}

	pending := make([]uuid.UUID, 0, len(payload.ProductIDs))
	for _, s := range payload.ProductIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			log.Warn().Str("product_id", s).Msg("resync_worker: skipping invalid product id")
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return
	}

	var lastFailures map[string]string
	err := withRetry(ctx, w.maxAttempts, w.backoff, func(attempt int) error {
		sum := w.resyncer.ResyncProducts(ctx, pending)
		log.Info().
			Int("attempt", attempt+1).
			Int("applied", sum.Applied).
			Int("skipped", sum.Skipped).
			Int("failed", sum.Failed).
			Msg("resync_worker: batch processed")
		if sum.Failed == 0 {
			return nil
		}
		lastFailures = sum.Failures
		pending = failedIDs(sum.Failures)
		if attempt+1 < w.maxAttempts {
			metrics.ResyncJobs.WithLabelValues("retried").Inc()
		}
		return fmt.Errorf("%d products failed", sum.Failed)
	})
	if err == nil {
		metrics.ResyncJobs.WithLabelValues("ok").Inc()
		return
	}

	metrics.ResyncJobs.WithLabelValues("dlq").Inc()
	if w.rdb == nil {
		log.Error().Err(err).Int("products", len(pending)).Msg("resync_worker: giving up, no DLQ configured")
		return
	}
	left := ResyncJobPayload{ProductIDs: make([]string, 0, len(pending))}
	for _, id := range pending {
		left.ProductIDs = append(left.ProductIDs, id.String())
	}
	data, _ := json.Marshal(left)
	SendToDLQ(ctx, w.rdb, QueueStockResync, jobTypeStockResync, data,
		fmt.Sprintf("max attempts (%d) exceeded: %s", w.maxAttempts, summarize(lastFailures)), w.maxAttempts)
}

func failedIDs(failures map[string]string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(failures))
	for s := range failures {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func summarize(failures map[string]string) string {
	parts := make([]string, 0, len(failures))
	for id, msg := range failures {
		parts = append(parts, id+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// starting at base. Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
