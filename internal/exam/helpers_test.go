package exam

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// idleTicker never fires; tests advance time with Timer.Tick.
type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

func newIdleTicker(time.Duration) Ticker { return idleTicker{ch: make(chan time.Time)} }

type fakeScorer struct {
	mu      sync.Mutex
	calls   int
	subs    []model.Submission
	err     error
	result  *model.SubmissionResult
	entered chan struct{}
	release chan struct{}
}

func (f *fakeScorer) Submit(ctx context.Context, testID string, sub model.Submission) (*model.SubmissionResult, error) {
	f.mu.Lock()
	f.calls++
	f.subs = append(f.subs, sub)
	err, res := f.err, f.result
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &model.SubmissionResult{AttemptID: "att-1", Score: 1, TotalMarks: 3}
	}
	return res, nil
}

func (f *fakeScorer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeScorer) LastSubmission() model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func raw(v string) json.RawMessage { return json.RawMessage(v) }

func abcd() map[string]string {
	return map[string]string{"A": "Alpha", "B": "Beta", "C": "Gamma", "D": "Delta"}
}

// mixedTest has one question of every kind, in the order mcq, msq,
// numerical, true-false.
func mixedTest(t *testing.T) *Test {
	t.Helper()
	test, err := NewTest(&model.Test{
		ID:       "t-mixed",
		Title:    "Mixed Mock",
		Duration: 1,
		Questions: []model.Question{
			{Type: model.QuestionTypeMCQ, Question: "Pick B", Marks: 1, NegativeMarks: 0.33, Options: abcd(), CorrectAnswer: raw(`"B"`)},
			{Type: model.QuestionTypeMSQ, Question: "Pick A and C", Marks: 2, Options: abcd(), CorrectAnswers: []string{"C", "A"}},
			{Type: model.QuestionTypeNumerical, Question: "Half of 25", Marks: 2, CorrectAnswer: raw(`"12.5"`), Tolerance: raw(`0.1`)},
			{Type: model.QuestionTypeTrueFalse, Question: "Earth is round", Marks: 1, CorrectAnswer: raw(`true`)},
		},
	})
	if err != nil {
		t.Fatalf("NewTest: %v", err)
	}
	return test
}

// mcqTest has n MCQ questions.
func mcqTest(t *testing.T, n int) *Test {
	t.Helper()
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{Type: model.QuestionTypeMCQ, Question: "Q", Marks: 1, Options: abcd(), CorrectAnswer: raw(`"B"`)}
	}
	test, err := NewTest(&model.Test{ID: "t-mcq", Title: "MCQ Mock", Duration: 1, Questions: qs})
	if err != nil {
		t.Fatalf("NewTest: %v", err)
	}
	return test
}

func startSession(t *testing.T, test *Test, scorer Scorer, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithTicker(newIdleTicker)}, opts...)
	s, err := NewSession(test, scorer, opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// checkConsistency asserts that answered statuses and stored answers agree.
func checkConsistency(t *testing.T, s *Session) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.palette.Len(); i++ {
		st := s.palette.Status(i)
		answered := st == StatusAnswered || st == StatusAnsweredMarked
		if answered != s.answers.Has(i) {
			t.Errorf("question %d: status %s but stored answer = %v", i, st, s.answers.Has(i))
		}
	}
}
