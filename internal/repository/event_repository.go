package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/geocatalyst/exam-engine/internal/config"
)

// EventRepository fans session events out over Redis Pub/Sub so any
// server instance can stream a session hosted by another.
type EventRepository struct {
	rdb *redis.Client
}

func NewEventRepository(rdb *redis.Client) *EventRepository {
	return &EventRepository{rdb: rdb}
}

// Publish sends an encoded event to the session channel.
func (r *EventRepository) Publish(ctx context.Context, sessionID string, payload []byte) error {
	return r.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(sessionID), payload).Err()
}

// Subscribe attaches to the session channel. The returned channel closes
// when ctx is done or the cancel func is called.
func (r *EventRepository) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error) {
	pubsub := r.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
