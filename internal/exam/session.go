package exam

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// Scorer accepts a finished attempt and returns its score.
type Scorer interface {
	Submit(ctx context.Context, testID string, sub model.Submission) (*model.SubmissionResult, error)
}

// Phase is the lifecycle stage of a Session.
type Phase string

const (
	PhaseReady      Phase = "ready"
	PhaseActive     Phase = "active"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
	PhaseFailed     Phase = "failed"
	PhaseClosed     Phase = "closed"
)

// EventType names a session notification.
type EventType string

const (
	EventTick         EventType = "tick"
	EventTimeUp       EventType = "time_up"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// Event is pushed to the session observer.
type Event struct {
	Type   EventType               `json:"type"`
	Clock  Clock                   `json:"clock"`
	Auto   bool                    `json:"auto,omitempty"`
	Result *model.SubmissionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Move describes the outcome of a navigation action.
type Move struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Notice string `json:"notice,omitempty"`
}

// LastQuestionNotice is returned when save-and-next is used on the last
// question.
const LastQuestionNotice = "You have reached the last question. Review using the palette or submit."

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithLogger(l zerolog.Logger) SessionOption { return func(s *Session) { s.log = l } }

func WithTicker(f TickerFunc) SessionOption { return func(s *Session) { s.newTicker = f } }

func WithObserver(fn func(Event)) SessionOption { return func(s *Session) { s.observer = fn } }

func WithNow(fn func() time.Time) SessionOption { return func(s *Session) { s.now = fn } }

// WithBaseContext sets the context used for submissions triggered by the
// timer rather than a caller.
func WithBaseContext(ctx context.Context) SessionOption { return func(s *Session) { s.baseCtx = ctx } }

func WithSubmitTimeout(d time.Duration) SessionOption { return func(s *Session) { s.submitTimeout = d } }

// Session is the controller of one attempt. All methods are safe for
// concurrent use; the timer runs on its own goroutine.
type Session struct {
	mu sync.Mutex

	test    *Test
	scorer  Scorer
	answers *AnswerStore
	palette *Palette
	timer   *Timer
	keypad  *Keypad

	current   int
	in        input
	phase     Phase
	startedAt time.Time
	result    *model.SubmissionResult
	timeTaken int
	auto      bool
	lastErr   error

	newTicker     TickerFunc
	observer      func(Event)
	now           func() time.Time
	baseCtx       context.Context
	submitTimeout time.Duration
	log           zerolog.Logger
}

// NewSession loads test into a ready session. Every question starts
// not-visited and the timer is stopped until Begin.
func NewSession(test *Test, scorer Scorer, opts ...SessionOption) (*Session, error) {
	if test == nil || len(test.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	s := &Session{
		test:          test,
		scorer:        scorer,
		answers:       NewAnswerStore(),
		palette:       NewPalette(len(test.Questions)),
		phase:         PhaseReady,
		now:           time.Now,
		baseCtx:       context.Background(),
		submitTimeout: 30 * time.Second,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timer = NewTimer(s.newTicker, s.onTick, s.onTimeUp)
	return s, nil
}

func (s *Session) Test() *Test { return s.test }

// Begin resets all answer state, starts the countdown and displays the
// first question.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseReady:
	case PhaseClosed:
		return ErrSessionClosed
	default:
		return ErrAlreadyStarted
	}

	s.answers.Reset()
	s.palette.Reset()
	s.startedAt = s.now()
	s.phase = PhaseActive
	s.display(0)
	s.timer.Start(s.test.DurationSeconds())

	s.log.Info().
		Str("test_id", s.test.ID).
		Int("questions", len(s.test.Questions)).
		Int("duration_seconds", s.test.DurationSeconds()).
		Msg("Attempt started")
	return nil
}

// display makes question i current. Caller holds mu.
func (s *Session) display(i int) {
	s.current = i
	saved, _ := s.answers.Get(i)
	s.in = inputFrom(saved)

	if _, ok := s.test.Questions[i].Kind.(Numerical); ok {
		if s.keypad == nil {
			s.keypad = NewKeypad()
		}
		s.keypad.SetInput(s.in.text)
		s.keypad.Bind(func(v string) {
			if s.current == i {
				s.in.text = v
			}
		})
	} else if s.keypad != nil {
		s.keypad.Detach()
	}

	if s.palette.Status(i) == StatusNotVisited {
		s.palette.set(i, StatusNotAnswered)
	}
}

// commit captures the current input into the answer store and reports
// whether an answer was recorded. Caller holds mu.
func (s *Session) commit() bool {
	a, ok := capture(s.test.Questions[s.current], s.in)
	if ok {
		s.answers.Set(s.current, a)
	} else {
		s.answers.Delete(s.current)
	}
	return ok
}

// settle captures the current input and recomputes its status, keeping
// the review flag. Caller holds mu.
func (s *Session) settle() {
	ok := s.commit()
	s.palette.set(s.current, resolve(ok, s.palette.Status(s.current).Flagged()))
}

func (s *Session) requireActive() error {
	switch s.phase {
	case PhaseActive:
		return nil
	case PhaseReady:
		return ErrNotStarted
	case PhaseClosed:
		return ErrSessionClosed
	case PhaseSubmitting, PhaseSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotActive
	}
}

// SaveAndNext commits the current answer and advances. On the last
// question it stays put and returns a notice.
func (s *Session) SaveAndNext() (Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return Move{}, err
	}
	s.settle()
	return s.advance(), nil
}

// MarkForReview flags the current question, commits its answer and
// advances.
func (s *Session) MarkForReview() (Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return Move{}, err
	}
	s.palette.set(s.current, resolve(s.commit(), true))
	return s.advance(), nil
}

func (s *Session) advance() Move {
	m := Move{From: s.current, To: s.current}
	if s.current >= len(s.test.Questions)-1 {
		m.Notice = LastQuestionNotice
		return m
	}
	s.display(s.current + 1)
	m.To = s.current
	return m
}

// ClearResponse drops the current answer and its review flag.
func (s *Session) ClearResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	s.answers.Delete(s.current)
	s.in = input{}
	if s.keypad != nil && s.keypad.Bound() {
		s.keypad.Clear()
	}
	if s.palette.Status(s.current) != StatusNotVisited {
		s.palette.set(s.current, StatusNotAnswered)
	}
	return nil
}

// Jump commits the current question and displays question j.
func (s *Session) Jump(j int) (Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return Move{}, err
	}
	if j < 0 || j >= len(s.test.Questions) {
		return Move{}, ErrInvalidIndex
	}
	m := Move{From: s.current, To: j}
	if j == s.current {
		return m, nil
	}
	s.settle()
	s.display(j)
	return m, nil
}

// Select chooses an option of the current MCQ or true/false question.
func (s *Session) Select(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	q := s.test.Questions[s.current]
	switch q.Kind.(type) {
	case MCQ, TrueFalse:
	default:
		return ErrWrongKind
	}
	if !hasOption(q, key) {
		return ErrUnknownOption
	}
	s.in.selected = []string{key}
	return nil
}

// Toggle flips an option of the current MSQ question.
func (s *Session) Toggle(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	q := s.test.Questions[s.current]
	if _, ok := q.Kind.(MSQ); !ok {
		return ErrWrongKind
	}
	if !hasOption(q, key) {
		return ErrUnknownOption
	}
	s.in.toggle(key)
	return nil
}

// SetText replaces the text of the current numerical question and mirrors
// it into the keypad.
func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	if _, ok := s.test.Questions[s.current].Kind.(Numerical); !ok {
		return ErrWrongKind
	}
	s.in.text = text
	s.keypad.SetInput(text)
	return nil
}

// PressKey feeds one keypad key to the current numerical question.
func (s *Session) PressKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	if _, ok := s.test.Questions[s.current].Kind.(Numerical); !ok {
		return ErrWrongKind
	}
	_, err := s.keypad.Press(key)
	return err
}

// RequestSubmit pauses the timer, commits the current question and
// returns the summary to confirm.
func (s *Session) RequestSubmit() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return Summary{}, err
	}
	s.timer.Stop()
	s.settle()
	s.phase = PhaseConfirming
	return s.palette.Summary(), nil
}

// CancelSubmit returns from confirmation to answering and resumes the
// timer.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfirming {
		return ErrNotConfirming
	}
	s.phase = PhaseActive
	s.timer.Start(s.timer.Remaining())
	return nil
}

// ConfirmSubmit dispatches the attempt. It is the only manual path to the
// scorer and succeeds at most once per session.
func (s *Session) ConfirmSubmit(ctx context.Context) (*model.SubmissionResult, error) {
	return s.dispatch(ctx, false)
}

func (s *Session) onTick(remaining int) {
	s.emit(Event{Type: EventTick, Clock: s.timer.Clock()})
}

func (s *Session) onTimeUp() {
	s.mu.Lock()
	if s.phase != PhaseActive && s.phase != PhaseConfirming {
		s.mu.Unlock()
		return
	}
	s.settle()
	s.mu.Unlock()

	s.log.Warn().Str("test_id", s.test.ID).Msg("Time is up, submitting automatically")
	s.emit(Event{Type: EventTimeUp, Clock: s.timer.Clock(), Auto: true})

	_, _ = s.dispatch(s.baseCtx, true)
}

func (s *Session) dispatch(ctx context.Context, auto bool) (*model.SubmissionResult, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseConfirming:
	case PhaseActive:
		if !auto {
			s.mu.Unlock()
			return nil, ErrNotConfirming
		}
	case PhaseSubmitting, PhaseSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case PhaseReady:
		s.mu.Unlock()
		return nil, ErrNotStarted
	default:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	s.timer.Stop()
	remaining := s.timer.Remaining()
	sub := model.Submission{
		Answers:     s.answers.Payload(),
		TimeTaken:   s.test.DurationSeconds() - remaining,
		SubmittedAt: s.now().UTC(),
	}
	s.phase = PhaseSubmitting
	s.auto = auto
	s.mu.Unlock()

	// A dispatch in flight outlives the caller that started it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	defer cancel()
	res, err := s.scorer.Submit(ctx, s.test.ID, sub)

	s.mu.Lock()
	closed := s.phase == PhaseClosed
	if err != nil {
		serr := &SubmitError{Err: err, Auto: auto}
		switch {
		case closed:
		case !auto && remaining > 0:
			serr.Resumed = true
			s.phase = PhaseActive
			s.timer.Start(remaining)
		default:
			s.phase = PhaseFailed
		}
		s.lastErr = serr
		s.mu.Unlock()

		s.log.Error().Err(err).Str("test_id", s.test.ID).Bool("auto", auto).Bool("resumed", serr.Resumed).Msg("Submission failed")
		s.emit(Event{Type: EventSubmitFailed, Clock: s.timer.Clock(), Auto: auto, Error: serr.Error()})
		return nil, serr
	}

	if !closed {
		s.phase = PhaseSubmitted
	}
	s.result = res
	s.timeTaken = sub.TimeTaken
	s.lastErr = nil
	s.mu.Unlock()

	s.log.Info().Str("test_id", s.test.ID).Str("attempt_id", res.AttemptID).Bool("auto", auto).Float64("score", res.Score).Msg("Attempt submitted")
	s.emit(Event{Type: EventSubmitted, Clock: s.timer.Clock(), Auto: auto, Result: res})
	return res, nil
}

func (s *Session) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}

// Close stops the timer and releases the keypad. A closed session accepts
// no further actions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer.Stop()
	if s.keypad != nil {
		s.keypad.Destroy()
		s.keypad = nil
	}
	if s.phase != PhaseSubmitted {
		s.phase = PhaseClosed
	}
}

// State is a consistent snapshot of a session.
type State struct {
	TestID    string      `json:"test_id"`
	Title     string      `json:"title"`
	Phase     Phase       `json:"phase"`
	Current   int         `json:"current"`
	Question  *View       `json:"question,omitempty"`
	Palette   []Status    `json:"palette"`
	Clock     Clock       `json:"clock"`
	Summary   Summary     `json:"summary"`
	Result    *ResultView `json:"result,omitempty"`
	Auto      bool        `json:"auto_submitted,omitempty"`
	Error     string      `json:"error,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		TestID:    s.test.ID,
		Title:     s.test.Title,
		Phase:     s.phase,
		Current:   s.current,
		Palette:   s.palette.Statuses(),
		Clock:     s.timer.Clock(),
		Summary:   s.palette.Summary(),
		Auto:      s.auto,
		StartedAt: s.startedAt,
	}
	if s.phase == PhaseActive || s.phase == PhaseConfirming {
		saved, _ := s.answers.Get(s.current)
		v := Render(s.current, s.test.Questions[s.current], saved)
		v.fill(s.test.Questions[s.current], s.in)
		st.Question = &v
	}
	if s.result != nil {
		res := *s.result
		if res.TimeTaken == 0 {
			res.TimeTaken = s.timeTaken
		}
		st.Result = NewResultView(&res, s.test.TotalMarks)
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result is the scoring result once submitted.
func (s *Session) Result() (*model.SubmissionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Answer returns the committed answer of question i.
func (s *Session) Answer(i int) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Get(i)
}

// Status returns the palette status of question i.
func (s *Session) Status(i int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.palette.Status(i)
}

// Progress is the autosave snapshot of the session.
func (s *Session) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	palette := make([]string, s.palette.Len())
	for i, st := range s.palette.statuses {
		palette[i] = string(st)
	}
	return model.Progress{
		TestID:    s.test.ID,
		Phase:     string(s.phase),
		Current:   s.current,
		Remaining: s.timer.Remaining(),
		Palette:   palette,
		Answers:   s.answers.Raw(),
		StartedAt: s.startedAt,
		SavedAt:   s.now().UTC(),
	}
}

// Submission previews the payload that would be sent now.
func (s *Session) Submission() model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Submission{
		Answers:     s.answers.Payload(),
		TimeTaken:   s.test.DurationSeconds() - s.timer.Remaining(),
		SubmittedAt: s.now().UTC(),
	}
}
