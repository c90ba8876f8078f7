package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/model"
)

type harness struct {
	svc       *SessionService
	up        *fakeUpstream
	snapshots *memSnapshots
	queue     *memQueue
	bus       *memBus
	lookup    *memLookup
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		up:        &fakeUpstream{test: twoQuestionTest()},
		snapshots: newMemSnapshots(),
		queue:     &memQueue{},
		bus:       &memBus{},
		lookup:    &memLookup{},
	}
	h.svc = NewSessionService(
		context.Background(),
		func(string) Upstream { return h.up },
		NewAuthService(testConfig()),
		h.snapshots, h.queue, h.lookup, h.bus,
		SessionConfig{Idle: time.Minute, SubmitTimeout: time.Second},
		zerolog.Nop(),
	)
	h.svc.ticker = newIdleTicker
	t.Cleanup(func() { h.svc.Shutdown(context.Background()) })
	return h
}

func (h *harness) create(t *testing.T) uuid.UUID {
	t.Helper()
	created, err := h.svc.Create(context.Background(), "upstream-token", "t-geo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, err := uuid.Parse(created.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.Create(context.Background(), "upstream-token", "t-geo")
	if err != nil {
		t.Fatal(err)
	}
	if created.State.Phase != exam.PhaseReady {
		t.Errorf("phase = %s", created.State.Phase)
	}
	if created.Instructions.QuestionCount != 2 {
		t.Errorf("instructions = %+v", created.Instructions)
	}

	claims, err := h.svc.auth.ValidateToken(created.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.SessionID != created.SessionID || claims.Subject != Fingerprint("upstream-token") {
		t.Errorf("claims = %+v", claims)
	}
}

func TestCreateRefusesPriorAttempt(t *testing.T) {
	h := newHarness(t)
	h.up.attempted = true
	if _, err := h.svc.Create(context.Background(), "tok", "t-geo"); !errors.Is(err, ErrAlreadyAttempted) {
		t.Errorf("error = %v, want ErrAlreadyAttempted", err)
	}
}

func TestCreateIgnoresFailedCheck(t *testing.T) {
	h := newHarness(t)
	h.up.checkErr = errors.New("timeout")
	if _, err := h.svc.Create(context.Background(), "tok", "t-geo"); err != nil {
		t.Errorf("Create error = %v", err)
	}
}

func TestCreateFallsBackToArchive(t *testing.T) {
	h := newHarness(t)
	h.up.checkErr = errors.New("timeout")
	h.lookup.seen = map[string]bool{Fingerprint("tok") + "/t-geo": true}

	if _, err := h.svc.Create(context.Background(), "tok", "t-geo"); !errors.Is(err, ErrAlreadyAttempted) {
		t.Errorf("error = %v, want ErrAlreadyAttempted", err)
	}
	if _, err := h.svc.Create(context.Background(), "other", "t-geo"); err != nil {
		t.Errorf("unrelated subject: %v", err)
	}
}

func TestCreateRejectsEmptyTest(t *testing.T) {
	h := newHarness(t)
	h.up.test = &model.Test{ID: "t-empty"}
	if _, err := h.svc.Create(context.Background(), "tok", "t-empty"); !errors.Is(err, exam.ErrNoQuestions) {
		t.Errorf("error = %v, want ErrNoQuestions", err)
	}
	if h.svc.Len() != 0 {
		t.Error("empty test left a session behind")
	}
}

func TestSessionFlowAutosavesAndArchives(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Input(ctx, id, InputSelect, "A"); err != nil {
		t.Fatal(err)
	}
	mv, err := h.svc.SaveAndNext(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Move.To != 1 || mv.State.Palette[0] != exam.StatusAnswered {
		t.Errorf("move = %+v palette = %v", mv.Move, mv.State.Palette)
	}
	for _, k := range []string{"4", "5"} {
		if _, err := h.svc.Input(ctx, id, InputKey, k); err != nil {
			t.Fatal(err)
		}
	}

	p, err := h.svc.Progress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.SessionID != id.String() || string(p.Answers["0"]) != `"A"` || p.Current != 1 {
		t.Errorf("progress = %+v", p)
	}

	preview, err := h.svc.RequestSubmit(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if preview.Summary.Answered != 2 {
		t.Errorf("summary = %+v", preview.Summary)
	}
	st, err := h.svc.ConfirmSubmit(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != exam.PhaseSubmitted || st.Result == nil {
		t.Fatalf("state = %+v", st)
	}

	if len(h.up.submissions) != 1 {
		t.Fatalf("submissions = %d", len(h.up.submissions))
	}
	if got := h.up.submissions[0].Answers["1"]; got != "45" {
		t.Errorf("numeric answer = %v", got)
	}
	if len(h.queue.records) != 1 || h.queue.records[0].AttemptID != "att-42" || h.queue.records[0].AutoSubmitted {
		t.Errorf("archive = %+v", h.queue.records)
	}
	if evs := h.bus.events(id.String()); len(evs) == 0 || evs[len(evs)-1] != "submitted" {
		t.Errorf("events = %v", evs)
	}

	if _, err := h.svc.ConfirmSubmit(ctx, id); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Errorf("second confirm = %v", err)
	}
}

func TestSubmitFailureKeepsSessionUsable(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	ctx := context.Background()
	h.up.submitErr = errors.New("scoring offline")

	if _, err := h.svc.Begin(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.RequestSubmit(ctx, id); err != nil {
		t.Fatal(err)
	}
	st, err := h.svc.ConfirmSubmit(ctx, id)
	var serr *exam.SubmitError
	if !errors.As(err, &serr) || !serr.Resumed {
		t.Fatalf("error = %v", err)
	}
	if st.Phase != exam.PhaseActive || !st.Clock.Running {
		t.Errorf("state = %+v", st)
	}
	if len(h.queue.records) != 0 {
		t.Error("failed submission archived")
	}
}

func TestReview(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	ctx := context.Background()

	if _, err := h.svc.Review(ctx, id); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("review before submit = %v", err)
	}

	h.up.detail = &model.AttemptDetail{
		AttemptID: "att-42",
		TestQuestions: []model.Question{
			{Type: model.QuestionTypeMSQ, Question: "Pick", Marks: 2, Options: map[string]string{"A": "a", "C": "c"}, CorrectAnswers: []string{"A", "C"}},
		},
		Answers: map[string]json.RawMessage{"0": json.RawMessage(`["C","A"]`)},
	}
	r, err := h.svc.ReviewAttempt(ctx, "tok", "att-42")
	if err != nil {
		t.Fatal(err)
	}
	if r.Items[0].Verdict != exam.VerdictCorrect {
		t.Errorf("verdict = %s", r.Items[0].Verdict)
	}
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.State(uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v", err)
	}
	if err := h.svc.Close(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("close error = %v", err)
	}
}

func TestInputRejectsUnknownAction(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	if _, err := h.svc.Begin(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Input(context.Background(), id, "swipe", "A"); !errors.Is(err, ErrUnknownInput) {
		t.Errorf("error = %v", err)
	}
}

func TestReapSkipsRunningSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	running := h.create(t)
	idle := h.create(t)
	if _, err := h.svc.Begin(ctx, running); err != nil {
		t.Fatal(err)
	}

	if n := h.svc.Reap(ctx, time.Now().Add(2*time.Minute)); n != 1 {
		t.Errorf("reaped %d, want 1", n)
	}
	if _, err := h.svc.State(idle); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle ready session survived reaping")
	}
	if _, err := h.svc.State(running); err != nil {
		t.Errorf("running session reaped: %v", err)
	}
}

func TestCloseDeletesSnapshot(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	ctx := context.Background()
	if _, err := h.svc.Begin(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Close(ctx, id); err != nil {
		t.Fatal(err)
	}
	if p, _ := h.snapshots.Load(ctx, id.String()); p != nil {
		t.Error("snapshot kept after close")
	}
}
