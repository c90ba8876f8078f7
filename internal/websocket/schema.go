package websocket

import "github.com/geocatalyst/exam-engine/internal/exam"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionBegin         Action = "begin"
	ActionSelect        Action = "select"
	ActionToggle        Action = "toggle"
	ActionText          Action = "text"
	ActionKey           Action = "key"
	ActionSaveNext      Action = "save_next"
	ActionMarkReview    Action = "mark_review"
	ActionClear         Action = "clear"
	ActionJump          Action = "jump"
	ActionSubmit        Action = "submit"
	ActionCancelSubmit  Action = "cancel_submit"
	ActionConfirmSubmit Action = "confirm_submit"
	ActionState         Action = "state"
	ActionPing          Action = "ping"
)

// RequestPayload is every client message. Value carries option keys,
// keypad keys or text; Index is used by jump.
type RequestPayload struct {
	Action Action `json:"action"`
	Value  string `json:"value,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventState        Event = "state"
	EventPong         Event = "pong"
	EventTick         Event = "tick"
	EventTimeUp       Event = "time_up"
	EventSubmitted    Event = "submitted"
	EventSubmitFailed Event = "submit_failed"
)

// StateResponse answers an action with the resulting session state.
type StateResponse struct {
	Event   Event         `json:"event"`
	State   exam.State    `json:"state"`
	Move    *exam.Move    `json:"move,omitempty"`
	Summary *exam.Summary `json:"summary,omitempty"`
}

// SessionEvent is pushed when the timer or a submission changes the
// session outside a client request.
type SessionEvent struct {
	Event     Event            `json:"event"`
	SessionID string           `json:"session_id"`
	Clock     exam.Clock       `json:"clock"`
	Auto      bool             `json:"auto,omitempty"`
	Result    *exam.ResultView `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
