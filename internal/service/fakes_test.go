package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/model"
)

type fakeUpstream struct {
	mu          sync.Mutex
	test        *model.Test
	attempted   bool
	checkErr    error
	submitErr   error
	submissions []model.Submission
	detail      *model.AttemptDetail
	leaderboard *model.Leaderboard
	lbCalls     int
}

func (f *fakeUpstream) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	if f.test == nil {
		return nil, errors.New("not found")
	}
	return f.test, nil
}

func (f *fakeUpstream) CheckAttempt(ctx context.Context, testID string) (*model.AttemptCheck, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &model.AttemptCheck{Attempted: f.attempted}, nil
}

func (f *fakeUpstream) Submit(ctx context.Context, testID string, sub model.Submission) (*model.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submissions = append(f.submissions, sub)
	return &model.SubmissionResult{AttemptID: "att-42", Score: 1, TotalMarks: 2, Percentage: 50, CorrectAnswers: 1, Unattempted: 1, TimeTaken: sub.TimeTaken}, nil
}

func (f *fakeUpstream) GetAttempt(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	if f.detail == nil {
		return nil, errors.New("not found")
	}
	return f.detail, nil
}

func (f *fakeUpstream) GetLeaderboard(ctx context.Context, testID string) (*model.Leaderboard, error) {
	f.mu.Lock()
	f.lbCalls++
	f.mu.Unlock()
	return f.leaderboard, nil
}

type memSnapshots struct {
	mu    sync.Mutex
	saved map[string]model.Progress
	saves int
}

func newMemSnapshots() *memSnapshots { return &memSnapshots{saved: make(map[string]model.Progress)} }

func (m *memSnapshots) Save(ctx context.Context, p *model.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[p.SessionID] = *p
	m.saves++
	return nil
}

func (m *memSnapshots) Load(ctx context.Context, id string) (*model.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.saved[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memSnapshots) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

type memQueue struct {
	mu      sync.Mutex
	records []*model.AttemptRecord
}

func (q *memQueue) Enqueue(ctx context.Context, rec *model.AttemptRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, rec)
	return nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *memBus) Publish(ctx context.Context, id string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[id] = append(b.published[id], payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	ch := make(chan []byte)
	return ch, func() { close(ch) }, nil
}

func (b *memBus) events(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, p := range b.published[id] {
		var ev struct {
			Event string `json:"event"`
		}
		_ = json.Unmarshal(p, &ev)
		out = append(out, ev.Event)
	}
	return out
}

type memLookup struct {
	seen map[string]bool
}

func (l *memLookup) HasAttempt(ctx context.Context, subject, testID string) (bool, error) {
	return l.seen[subject+"/"+testID], nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	return nil
}

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

func newIdleTicker(time.Duration) exam.Ticker { return idleTicker{ch: make(chan time.Time)} }

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", SessionTokenTTL: time.Hour}
}

func twoQuestionTest() *model.Test {
	return &model.Test{
		ID:       "t-geo",
		Title:    "Geology Mock",
		Duration: 2,
		Questions: []model.Question{
			{Type: model.QuestionTypeMCQ, Question: "Igneous?", Marks: 1, NegativeMarks: 0.33, Options: map[string]string{"A": "Basalt", "B": "Shale"}},
			{Type: model.QuestionTypeNumerical, Question: "Dip angle", Marks: 1},
		},
	}
}
