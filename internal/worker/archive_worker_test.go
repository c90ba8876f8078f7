package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/model"
)

type fakeStore struct {
	batchErr error
	failing  map[string]bool
	batches  [][]*model.AttemptRecord
	singles  []string
}

func (s *fakeStore) InsertBatch(ctx context.Context, batch []*model.AttemptRecord) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches = append(s.batches, append([]*model.AttemptRecord(nil), batch...))
	return nil
}

func (s *fakeStore) Insert(ctx context.Context, rec *model.AttemptRecord) error {
	if s.failing[rec.AttemptID] {
		return errors.New("constraint violation")
	}
	s.singles = append(s.singles, rec.AttemptID)
	return nil
}

type fakeQueue struct {
	items   []string
	pushed  []string
	onEmpty func()
}

func (q *fakeQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	if len(q.items) == 0 {
		if q.onEmpty != nil {
			q.onEmpty()
		}
		cmd.SetErr(redis.Nil)
		return cmd
	}
	item := q.items[0]
	q.items = q.items[1:]
	cmd.SetVal([]string{keys[0], item})
	return cmd
}

func (q *fakeQueue) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			q.pushed = append(q.pushed, string(b))
		case string:
			q.pushed = append(q.pushed, b)
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(q.pushed)))
	return cmd
}

func encode(t *testing.T, rec model.AttemptRecord) string {
	t.Helper()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestNextDecodesAndDrops(t *testing.T) {
	q := &fakeQueue{items: []string{
		encode(t, model.AttemptRecord{AttemptID: "a1", TestID: "t1"}),
		"{not json",
		encode(t, model.AttemptRecord{SessionID: "s-no-id"}),
	}}
	w := NewArchiveWorker(&fakeStore{}, q, 10, zerolog.Nop())
	ctx := context.Background()

	rec, ok := w.next(ctx)
	if !ok || rec.AttemptID != "a1" {
		t.Fatalf("first = %+v, %v", rec, ok)
	}
	for i := 0; i < 3; i++ {
		if rec, ok := w.next(ctx); ok {
			t.Errorf("unexpected record %+v", rec)
		}
	}
}

func TestFlushFallsBackAndRequeues(t *testing.T) {
	store := &fakeStore{batchErr: errors.New("deadlock"), failing: map[string]bool{"bad": true}}
	q := &fakeQueue{}
	w := NewArchiveWorker(store, q, 10, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.AttemptRecord{{AttemptID: "good"}, {AttemptID: "bad"}})

	if len(store.singles) != 1 || store.singles[0] != "good" {
		t.Errorf("singles = %v", store.singles)
	}
	if len(q.pushed) != 1 {
		t.Fatalf("requeued = %v", q.pushed)
	}
	var rec model.AttemptRecord
	if err := json.Unmarshal([]byte(q.pushed[0]), &rec); err != nil || rec.AttemptID != "bad" {
		t.Errorf("requeued record = %+v (%v)", rec, err)
	}
}

func TestStartBatchesUntilShutdown(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	q := &fakeQueue{
		items: []string{
			encode(t, model.AttemptRecord{AttemptID: "a1"}),
			encode(t, model.AttemptRecord{AttemptID: "a2"}),
			encode(t, model.AttemptRecord{AttemptID: "a3"}),
		},
		onEmpty: cancel,
	}
	w := NewArchiveWorker(store, q, 2, zerolog.Nop())

	w.Start(ctx)

	if len(store.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(store.batches))
	}
	if got := store.batches[0]; len(got) != 2 || got[0].AttemptID != "a1" || got[1].AttemptID != "a2" {
		t.Errorf("first batch = %+v", got)
	}
	if got := store.batches[1]; len(got) != 1 || got[0].AttemptID != "a3" {
		t.Errorf("shutdown batch = %+v", got)
	}
}
