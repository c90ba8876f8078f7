package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/model"
)

const (
	ArchiveBatchTimeout = 2 * time.Second
	ArchivePollTimeout  = 1 * time.Second
)

// AttemptStore persists archived attempts.
type AttemptStore interface {
	InsertBatch(ctx context.Context, batch []*model.AttemptRecord) error
	Insert(ctx context.Context, rec *model.AttemptRecord) error
}

// Queue is the list the worker drains.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ArchiveWorker drains finished attempts from Redis into Postgres in
// batches.
type ArchiveWorker struct {
	store     AttemptStore
	queue     Queue
	batchSize int
	log       zerolog.Logger
}

func NewArchiveWorker(store AttemptStore, queue Queue, batchSize int, log zerolog.Logger) *ArchiveWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ArchiveWorker{
		store:     store,
		queue:     queue,
		batchSize: batchSize,
		log:       log.With().Str("component", "archive_worker").Logger(),
	}
}

// Start blocks until ctx is done, then flushes what it holds.
func (w *ArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.batchSize).Msg("ArchiveWorker started")

	batch := make([]*model.AttemptRecord, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= ArchiveBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return
		default:
		}

		rec, ok := w.next(ctx)
		if ok {
			batch = append(batch, rec)
		}
	}
}

func (w *ArchiveWorker) next(ctx context.Context) (*model.AttemptRecord, bool) {
	item, err := w.queue.BLPop(ctx, ArchivePollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return nil, false
	}
	if len(item) < 2 {
		return nil, false
	}

	var rec model.AttemptRecord
	if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
		w.log.Error().Err(err).Msg("Invalid attempt payload, dropping")
		return nil, false
	}
	if rec.AttemptID == "" {
		w.log.Warn().Str("session_id", rec.SessionID).Msg("Attempt without id, dropping")
		return nil, false
	}
	return &rec, true
}

// flushSafe writes a batch, falling back to row-by-row inserts and
// requeueing the rows that still fail.
func (w *ArchiveWorker) flushSafe(ctx context.Context, batch []*model.AttemptRecord) {
	if len(batch) == 0 {
		return
	}

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Attempts archived")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch archive failed, using fallback")

	for _, rec := range batch {
		if err := w.store.Insert(ctx, rec); err != nil {
			w.log.Error().Err(err).Str("attempt_id", rec.AttemptID).Msg("Archive insert failed, requeueing")
			raw, _ := json.Marshal(rec)
			w.queue.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
		}
	}
}
