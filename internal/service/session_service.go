package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/model"
	ws "github.com/geocatalyst/exam-engine/internal/websocket"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyAttempted = errors.New("test already attempted")
	ErrNotSubmitted     = errors.New("attempt not submitted yet")
	ErrUnknownInput     = errors.New("unknown input action")
)

// Input actions accepted by SessionService.Input.
const (
	InputSelect = "select"
	InputToggle = "toggle"
	InputText   = "text"
	InputKey    = "key"
)

// SessionConfig tunes live session handling.
type SessionConfig struct {
	SnapshotTTL   time.Duration
	Idle          time.Duration
	SubmitTimeout time.Duration
}

type liveSession struct {
	id        uuid.UUID
	subject   string
	testID    string
	exam      *exam.Session
	upstream  Upstream
	createdAt time.Time
	lastSeen  atomic.Int64
}

func (ls *liveSession) touch() { ls.lastSeen.Store(time.Now().UnixNano()) }

func (ls *liveSession) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, ls.lastSeen.Load()))
}

// SessionService hosts live exam sessions in memory. Progress is mirrored
// to the snapshot store after every action, finished attempts are queued
// for archiving and events are published for streaming clients.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	upstream  UpstreamFactory
	auth      *AuthService
	snapshots SnapshotStore
	archive   AttemptQueue
	lookup    AttemptLookup
	events    EventBus
	cfg       SessionConfig
	ticker    exam.TickerFunc
	baseCtx   context.Context
	log       zerolog.Logger
}

// NewSessionService wires the session host. baseCtx bounds work started
// by timers, such as auto-submission.
func NewSessionService(
	baseCtx context.Context,
	upstream UpstreamFactory,
	auth *AuthService,
	snapshots SnapshotStore,
	archive AttemptQueue,
	lookup AttemptLookup,
	events EventBus,
	cfg SessionConfig,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:  make(map[uuid.UUID]*liveSession),
		upstream:  upstream,
		auth:      auth,
		snapshots: snapshots,
		archive:   archive,
		lookup:    lookup,
		events:    events,
		cfg:       cfg,
		ticker:    exam.NewStdTicker,
		baseCtx:   baseCtx,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// CreatedSession is returned when a session is opened.
type CreatedSession struct {
	SessionID    string            `json:"session_id"`
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Instructions exam.Instructions `json:"instructions"`
	State        exam.State        `json:"state"`
}

// Create loads testID for the holder of upstreamToken and opens a ready
// session. A confirmed earlier attempt is refused. When the upstream check
// fails the local archive decides, and loading proceeds if it has no record.
func (s *SessionService) Create(ctx context.Context, upstreamToken, testID string) (*CreatedSession, error) {
	up := s.upstream(upstreamToken)
	subject := Fingerprint(upstreamToken)

	chk, err := up.CheckAttempt(ctx, testID)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Attempt check failed, continuing")
		if s.lookup != nil {
			seen, lerr := s.lookup.HasAttempt(ctx, subject, testID)
			if lerr != nil {
				s.log.Warn().Err(lerr).Str("test_id", testID).Msg("Archive lookup failed")
			} else if seen {
				return nil, ErrAlreadyAttempted
			}
		}
	case chk.Attempted:
		return nil, ErrAlreadyAttempted
	}

	mt, err := up.GetTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}
	test, err := exam.NewTest(mt)
	if err != nil {
		return nil, err
	}

	ls := &liveSession{
		id:        uuid.New(),
		subject:   subject,
		testID:    test.ID,
		upstream:  up,
		createdAt: time.Now(),
	}
	ls.touch()

	sessLog := s.log.With().Str("session_id", ls.id.String()).Str("subject", subject).Logger()
	sess, err := exam.NewSession(test, up,
		exam.WithLogger(sessLog),
		exam.WithTicker(s.ticker),
		exam.WithBaseContext(s.baseCtx),
		exam.WithSubmitTimeout(s.cfg.SubmitTimeout),
		exam.WithObserver(func(ev exam.Event) { s.onEvent(ls, ev) }),
	)
	if err != nil {
		return nil, err
	}
	ls.exam = sess

	token, exp, err := s.auth.IssueSessionToken(ls.id, test.ID, subject)
	if err != nil {
		sess.Close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()

	sessLog.Info().Str("test_id", test.ID).Msg("Session created")

	return &CreatedSession{
		SessionID:    ls.id.String(),
		Token:        token,
		ExpiresAt:    exp,
		Instructions: exam.BuildInstructions(test),
		State:        sess.State(),
	}, nil
}

func (s *SessionService) get(id uuid.UUID) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	ls.touch()
	return ls, nil
}

// act runs fn against the session, then autosaves and returns the state.
func (s *SessionService) act(ctx context.Context, id uuid.UUID, fn func(*exam.Session) error) (exam.State, error) {
	ls, err := s.get(id)
	if err != nil {
		return exam.State{}, err
	}
	if err := fn(ls.exam); err != nil {
		return exam.State{}, err
	}
	s.autosave(ctx, ls)
	return ls.exam.State(), nil
}

// State returns the current snapshot of a session.
func (s *SessionService) State(id uuid.UUID) (exam.State, error) {
	ls, err := s.get(id)
	if err != nil {
		return exam.State{}, err
	}
	return ls.exam.State(), nil
}

// Instructions returns the pre-start summary of the session's test.
func (s *SessionService) Instructions(id uuid.UUID) (exam.Instructions, error) {
	ls, err := s.get(id)
	if err != nil {
		return exam.Instructions{}, err
	}
	return exam.BuildInstructions(ls.exam.Test()), nil
}

func (s *SessionService) Begin(ctx context.Context, id uuid.UUID) (exam.State, error) {
	return s.act(ctx, id, func(e *exam.Session) error { return e.Begin() })
}

// Input applies one edit to the displayed question.
func (s *SessionService) Input(ctx context.Context, id uuid.UUID, action, value string) (exam.State, error) {
	return s.act(ctx, id, func(e *exam.Session) error {
		switch action {
		case InputSelect:
			return e.Select(value)
		case InputToggle:
			return e.Toggle(value)
		case InputText:
			return e.SetText(value)
		case InputKey:
			return e.PressKey(value)
		}
		return ErrUnknownInput
	})
}

// MoveResult pairs a navigation outcome with the resulting state.
type MoveResult struct {
	Move  exam.Move  `json:"move"`
	State exam.State `json:"state"`
}

func (s *SessionService) navigate(ctx context.Context, id uuid.UUID, fn func(*exam.Session) (exam.Move, error)) (*MoveResult, error) {
	var m exam.Move
	st, err := s.act(ctx, id, func(e *exam.Session) error {
		var err error
		m, err = fn(e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &MoveResult{Move: m, State: st}, nil
}

func (s *SessionService) SaveAndNext(ctx context.Context, id uuid.UUID) (*MoveResult, error) {
	return s.navigate(ctx, id, (*exam.Session).SaveAndNext)
}

func (s *SessionService) MarkForReview(ctx context.Context, id uuid.UUID) (*MoveResult, error) {
	return s.navigate(ctx, id, (*exam.Session).MarkForReview)
}

func (s *SessionService) Jump(ctx context.Context, id uuid.UUID, index int) (*MoveResult, error) {
	return s.navigate(ctx, id, func(e *exam.Session) (exam.Move, error) { return e.Jump(index) })
}

func (s *SessionService) ClearResponse(ctx context.Context, id uuid.UUID) (exam.State, error) {
	return s.act(ctx, id, (*exam.Session).ClearResponse)
}

// SubmitPreview is the confirmation step of a manual submission.
type SubmitPreview struct {
	Summary exam.Summary `json:"summary"`
	State   exam.State   `json:"state"`
}

func (s *SessionService) RequestSubmit(ctx context.Context, id uuid.UUID) (*SubmitPreview, error) {
	var sum exam.Summary
	st, err := s.act(ctx, id, func(e *exam.Session) error {
		var err error
		sum, err = e.RequestSubmit()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SubmitPreview{Summary: sum, State: st}, nil
}

func (s *SessionService) CancelSubmit(ctx context.Context, id uuid.UUID) (exam.State, error) {
	return s.act(ctx, id, (*exam.Session).CancelSubmit)
}

// ConfirmSubmit dispatches the attempt. On failure the returned state
// shows whether answering resumed.
func (s *SessionService) ConfirmSubmit(ctx context.Context, id uuid.UUID) (exam.State, error) {
	ls, err := s.get(id)
	if err != nil {
		return exam.State{}, err
	}
	_, err = ls.exam.ConfirmSubmit(ctx)
	return ls.exam.State(), err
}

// Progress returns the last autosaved snapshot, or the live one when the
// store has none.
func (s *SessionService) Progress(ctx context.Context, id uuid.UUID) (*model.Progress, error) {
	ls, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if s.snapshots != nil {
		p, err := s.snapshots.Load(ctx, id.String())
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Snapshot load failed")
		}
	}
	p := ls.exam.Progress()
	p.SessionID = id.String()
	return &p, nil
}

// Review recomputes the verdicts of the session's submitted attempt.
func (s *SessionService) Review(ctx context.Context, id uuid.UUID) (*exam.Review, error) {
	ls, err := s.get(id)
	if err != nil {
		return nil, err
	}
	res, ok := ls.exam.Result()
	if !ok {
		return nil, ErrNotSubmitted
	}
	return reviewAttempt(ctx, ls.upstream, res.AttemptID)
}

// ReviewAttempt reviews any attempt visible to upstreamToken.
func (s *SessionService) ReviewAttempt(ctx context.Context, upstreamToken, attemptID string) (*exam.Review, error) {
	return reviewAttempt(ctx, s.upstream(upstreamToken), attemptID)
}

func reviewAttempt(ctx context.Context, up Upstream, attemptID string) (*exam.Review, error) {
	detail, err := up.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return exam.BuildReview(detail)
}

// Close tears a session down and forgets it.
func (s *SessionService) Close(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	ls, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	ls.exam.Close()
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, id.String()); err != nil {
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Snapshot delete failed")
		}
	}
	s.log.Info().Str("session_id", id.String()).Msg("Session closed")
	return nil
}

// Subscribe streams encoded events of a session.
func (s *SessionService) Subscribe(ctx context.Context, id uuid.UUID) (<-chan []byte, func(), error) {
	if _, err := s.get(id); err != nil {
		return nil, nil, err
	}
	if s.events == nil {
		return nil, nil, errors.New("event streaming disabled")
	}
	return s.events.Subscribe(ctx, id.String())
}

// Len is the number of hosted sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap closes sessions that are not running and have been idle longer
// than the configured limit. Running sessions are left to their timer.
func (s *SessionService) Reap(ctx context.Context, now time.Time) int {
	s.mu.RLock()
	var stale []uuid.UUID
	for id, ls := range s.sessions {
		switch ls.exam.Phase() {
		case exam.PhaseActive, exam.PhaseConfirming, exam.PhaseSubmitting:
			continue
		}
		if ls.idleFor(now) > s.cfg.Idle {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		_ = s.Close(ctx, id)
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (s *SessionService) RunReaper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Reap(ctx, now); n > 0 {
				s.log.Info().Int("reaped", n).Int("live", s.Len()).Msg("Idle sessions closed")
			}
		}
	}
}

// Shutdown closes every session.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Close(ctx, id)
	}
}

func (s *SessionService) autosave(ctx context.Context, ls *liveSession) {
	if s.snapshots == nil {
		return
	}
	p := ls.exam.Progress()
	p.SessionID = ls.id.String()
	if err := s.snapshots.Save(ctx, &p); err != nil {
		s.log.Warn().Err(err).Str("session_id", ls.id.String()).Msg("Autosave failed")
	}
}

// onEvent runs on the session's timer or submit goroutine.
func (s *SessionService) onEvent(ls *liveSession, ev exam.Event) {
	ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
	defer cancel()

	switch ev.Type {
	case exam.EventSubmitted:
		s.enqueueArchive(ctx, ls, ev)
		s.autosave(ctx, ls)
	case exam.EventSubmitFailed, exam.EventTimeUp:
		s.autosave(ctx, ls)
	case exam.EventTick:
		if ev.Clock.Remaining%10 == 0 {
			s.autosave(ctx, ls)
		}
	}

	if s.events == nil {
		return
	}
	payload := ws.SessionEvent{
		Event:     ws.Event(ev.Type),
		SessionID: ls.id.String(),
		Clock:     ev.Clock,
		Auto:      ev.Auto,
		Error:     ev.Error,
	}
	if ev.Result != nil {
		payload.Result = exam.NewResultView(ev.Result, ls.exam.Test().TotalMarks)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, ls.id.String(), b); err != nil {
		s.log.Debug().Err(err).Str("session_id", ls.id.String()).Msg("Event publish failed")
	}
}

func (s *SessionService) enqueueArchive(ctx context.Context, ls *liveSession, ev exam.Event) {
	if s.archive == nil || ev.Result == nil {
		return
	}
	res := ev.Result
	sub := ls.exam.Submission()
	rec := &model.AttemptRecord{
		AttemptID:      res.AttemptID,
		SessionID:      ls.id.String(),
		Subject:        ls.subject,
		TestID:         ls.testID,
		Score:          res.Score,
		TotalMarks:     res.TotalMarks,
		Percentage:     res.Percentage,
		CorrectAnswers: res.CorrectAnswers,
		WrongAnswers:   res.WrongAnswers,
		Unattempted:    res.Unattempted,
		TimeTaken:      res.TimeTaken,
		AutoSubmitted:  ev.Auto,
		Answers:        sub.Answers,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.archive.Enqueue(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("attempt_id", res.AttemptID).Msg("Failed to queue attempt for archiving")
	}
}
