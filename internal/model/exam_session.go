package model

import (
	"encoding/json"
	"time"
)

// CreateSessionRequest opens a live attempt for a test.
type CreateSessionRequest struct {
	TestID string `uri:"test_id" binding:"required,min=1,max=64"`
}

// InputRequest is a single edit to the displayed question's input.
type InputRequest struct {
	Action string `json:"action" binding:"required,oneof=select toggle text key"`
	Value  string `json:"value" binding:"max=64"`
}

// JumpRequest moves the session to another question.
type JumpRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// Progress is the autosaved state of a live session.
type Progress struct {
	SessionID string                     `json:"session_id"`
	TestID    string                     `json:"test_id"`
	Phase     string                     `json:"phase"`
	Current   int                        `json:"current"`
	Remaining int                        `json:"remaining"`
	Palette   []string                   `json:"palette"`
	Answers   map[string]json.RawMessage `json:"answers"`
	StartedAt time.Time                  `json:"started_at"`
	SavedAt   time.Time                  `json:"saved_at"`
}
