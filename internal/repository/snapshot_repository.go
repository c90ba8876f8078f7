package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/model"
)

// SnapshotRepository autosaves live session progress to Redis. Answers go
// to a hash keyed by question index so a single edit rewrites one field;
// the cursor, palette and clock are stored as one JSON value.
type SnapshotRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotRepository creates a SnapshotRepository whose keys expire
// after ttl. A zero ttl keeps them until deleted.
func NewSnapshotRepository(rdb *redis.Client, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{rdb: rdb, ttl: ttl}
}

// Save replaces the stored snapshot of p.SessionID.
func (r *SnapshotRepository) Save(ctx context.Context, p *model.Progress) error {
	head := *p
	head.Answers = nil
	payload, err := json.Marshal(head)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	progressKey := config.CacheKey.SessionProgressKey(p.SessionID)
	answersKey := config.CacheKey.SessionAnswersKey(p.SessionID)

	fields := make(map[string]any, len(p.Answers))
	for idx, raw := range p.Answers {
		fields[idx] = string(raw)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, progressKey, payload, r.ttl)
	pipe.Del(ctx, answersKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, answersKey, fields)
		if r.ttl > 0 {
			pipe.Expire(ctx, answersKey, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot of sessionID, or nil when none is stored.
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (*model.Progress, error) {
	pipe := r.rdb.Pipeline()
	head := pipe.Get(ctx, config.CacheKey.SessionProgressKey(sessionID))
	answers := pipe.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	data, err := head.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var p model.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	p.Answers = make(map[string]json.RawMessage, len(answers.Val()))
	for idx, raw := range answers.Val() {
		p.Answers[idx] = json.RawMessage(raw)
	}
	return &p, nil
}

// Delete drops the snapshot of sessionID.
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx,
		config.CacheKey.SessionProgressKey(sessionID),
		config.CacheKey.SessionAnswersKey(sessionID),
	).Err()
}
