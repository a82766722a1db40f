package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueStockResync = "jobs:stock_resync"

	jobTypeStockResync = "stock_resync"

	popTimeout = 5 * time.Second

	// errorBackoff spaces out polls while Redis is unreachable.
	errorBackoff = time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Processor handles the payload of one job type.
type Processor interface {
	Process(ctx context.Context, raw json.RawMessage)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueResync queues a batched resync for products touched by a bulk
// batch update.
func (d *Dispatcher) EnqueueResync(ctx context.Context, productIDs []uuid.UUID) error {
	payload := ResyncJobPayload{ProductIDs: make([]string, 0, len(productIDs))}
	for _, id := range productIDs {
		payload.ProductIDs = append(payload.ProductIDs, id.String())
	}
	return d.enqueue(ctx, QueueStockResync, jobTypeStockResync, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, processors map[string]Processor) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, processors)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, processors map[string]Processor) {
	queues := []string{QueueStockResync}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			wait := pollOnce(ctx, rdb, queues, processors)
			if wait == 0 {
				continue
			}
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}
}

// pollOnce pops and processes at most one job and returns how long the
// caller should pause before polling again.
func pollOnce(ctx context.Context, rdb *redis.Client, queues []string, processors map[string]Processor) time.Duration {
	// Blocking pop; waits up to popTimeout then returns to check ctx
	result, err := rdb.BRPop(ctx, popTimeout, queues...).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return 0
	case err != nil:
		if ctx.Err() != nil {
			return 0
		}
		log.Warn().Err(err).Strs("queues", queues).Dur("backoff", errorBackoff).Msg("worker: dequeue failed")
		return errorBackoff
	}
	if len(result) < 2 {
		return 0
	}
	processJob(ctx, processors, result[0], result[1])
	return 0
}

func processJob(ctx context.Context, processors map[string]Processor, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	p, ok := processors[job.Type]
	if !ok {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no processor for job type")
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	p.Process(ctx, job.Payload)
}

// Processors returns the processor table for StartWorkerPool.
func Processors(resync *ResyncWorker) map[string]Processor {
	return map[string]Processor{jobTypeStockResync: resync}
}
