package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/model"
)

// AttemptQueueRepository pushes finished attempts onto the archive queue.
type AttemptQueueRepository struct {
	rdb *redis.Client
}

func NewAttemptQueueRepository(rdb *redis.Client) *AttemptQueueRepository {
	return &AttemptQueueRepository{rdb: rdb}
}

func (r *AttemptQueueRepository) Enqueue(ctx context.Context, rec *model.AttemptRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return r.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err()
}
