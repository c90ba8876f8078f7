package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/middleware"
	"github.com/geocatalyst/exam-engine/internal/model"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
	"github.com/geocatalyst/exam-engine/internal/validator"
)

// SessionHandler serves live exam sessions.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession godoc
// POST /api/v1/tests/:test_id/sessions
// Checks for an earlier attempt, loads the test and returns the
// instructions together with the session token.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.BindURI(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	created, err := h.sessions.Create(c.Request.Context(), middleware.UpstreamToken(c), req.TestID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// GetState godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetState(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	st, err := h.sessions.State(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// GetInstructions godoc
// GET /api/v1/sessions/:session_id/instructions
func (h *SessionHandler) GetInstructions(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ins, err := h.sessions.Instructions(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, ins)
}

// Begin godoc
// POST /api/v1/sessions/:session_id/begin
// Acknowledges the instructions and starts the countdown.
func (h *SessionHandler) Begin(c *gin.Context) {
	h.stateAction(c, h.sessions.Begin)
}

// Input godoc
// POST /api/v1/sessions/:session_id/input
func (h *SessionHandler) Input(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.InputRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessions.Input(c.Request.Context(), id, req.Action, req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// SaveAndNext godoc
// POST /api/v1/sessions/:session_id/save-next
func (h *SessionHandler) SaveAndNext(c *gin.Context) {
	h.moveAction(c, h.sessions.SaveAndNext)
}

// MarkForReview godoc
// POST /api/v1/sessions/:session_id/mark-review
func (h *SessionHandler) MarkForReview(c *gin.Context) {
	h.moveAction(c, h.sessions.MarkForReview)
}

// ClearResponse godoc
// POST /api/v1/sessions/:session_id/clear
func (h *SessionHandler) ClearResponse(c *gin.Context) {
	h.stateAction(c, h.sessions.ClearResponse)
}

// Jump godoc
// POST /api/v1/sessions/:session_id/jump
func (h *SessionHandler) Jump(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.JumpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	mv, err := h.sessions.Jump(c.Request.Context(), id, *req.Index)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, mv)
}

// RequestSubmit godoc
// POST /api/v1/sessions/:session_id/submit
// Stops the clock and returns the answer summary for confirmation.
func (h *SessionHandler) RequestSubmit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	preview, err := h.sessions.RequestSubmit(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, preview)
}

// CancelSubmit godoc
// POST /api/v1/sessions/:session_id/submit/cancel
func (h *SessionHandler) CancelSubmit(c *gin.Context) {
	h.stateAction(c, h.sessions.CancelSubmit)
}

// ConfirmSubmit godoc
// POST /api/v1/sessions/:session_id/submit/confirm
// Sends the attempt for scoring. A failed submission reports the state
// it left behind so the client knows whether answering resumed.
func (h *SessionHandler) ConfirmSubmit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	st, err := h.sessions.ConfirmSubmit(c.Request.Context(), id)
	if err != nil {
		var serr *exam.SubmitError
		if errors.As(err, &serr) {
			failWithData(c, err, st)
			return
		}
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// GetProgress godoc
// GET /api/v1/sessions/:session_id/progress
func (h *SessionHandler) GetProgress(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	p, err := h.sessions.Progress(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// GetReview godoc
// GET /api/v1/sessions/:session_id/review
func (h *SessionHandler) GetReview(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	r, err := h.sessions.Review(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, r)
}

// CloseSession godoc
// DELETE /api/v1/sessions/:session_id
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

func (h *SessionHandler) stateAction(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (exam.State, error)) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	st, err := fn(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

func (h *SessionHandler) moveAction(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*service.MoveResult, error)) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	mv, err := fn(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, mv)
}
