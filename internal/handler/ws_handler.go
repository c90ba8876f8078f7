package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
	ws "github.com/geocatalyst/exam-engine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler drives a live session over a WebSocket: actions come in,
// state replies and timer or submission events go out.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
func (h *WSHandler) SessionStream(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if _, err := h.sessions.State(id); err != nil {
		fail(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Str("session_id", id.String()).Logger()

	events, unsubscribe, err := h.sessions.Subscribe(ctx, id)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Event subscription failed, streaming replies only")
	} else {
		defer unsubscribe()
		go func() {
			for msg := range events {
				if err := conn.WriteRaw(msg); err != nil {
					cancel()
					return
				}
			}
		}()
	}

	wsLog.Info().Msg("Client connected")
	h.reply(conn, id, func() (ws.StateResponse, error) {
		st, err := h.sessions.State(id)
		return ws.StateResponse{State: st}, err
	})

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.handle(ctx, conn, wsLog, id, &msg)
	}
}

func (h *WSHandler) handle(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, id uuid.UUID, msg *ws.RequestPayload) {
	state := func(fn func(context.Context, uuid.UUID) (exam.State, error)) {
		h.reply(conn, id, func() (ws.StateResponse, error) {
			st, err := fn(ctx, id)
			return ws.StateResponse{State: st}, err
		})
	}
	move := func(fn func(context.Context, uuid.UUID) (*service.MoveResult, error)) {
		h.reply(conn, id, func() (ws.StateResponse, error) {
			mv, err := fn(ctx, id)
			if err != nil {
				return ws.StateResponse{}, err
			}
			return ws.StateResponse{State: mv.State, Move: &mv.Move}, nil
		})
	}

	switch msg.Action {
	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
	case ws.ActionState:
		state(func(_ context.Context, id uuid.UUID) (exam.State, error) { return h.sessions.State(id) })
	case ws.ActionBegin:
		state(h.sessions.Begin)
	case ws.ActionSelect, ws.ActionToggle, ws.ActionText, ws.ActionKey:
		state(func(ctx context.Context, id uuid.UUID) (exam.State, error) {
			return h.sessions.Input(ctx, id, string(msg.Action), msg.Value)
		})
	case ws.ActionSaveNext:
		move(h.sessions.SaveAndNext)
	case ws.ActionMarkReview:
		move(h.sessions.MarkForReview)
	case ws.ActionClear:
		state(h.sessions.ClearResponse)
	case ws.ActionJump:
		if msg.Index == nil {
			_ = conn.WriteError(string(response.ErrValidation), "index is required")
			return
		}
		move(func(ctx context.Context, id uuid.UUID) (*service.MoveResult, error) {
			return h.sessions.Jump(ctx, id, *msg.Index)
		})
	case ws.ActionSubmit:
		h.reply(conn, id, func() (ws.StateResponse, error) {
			p, err := h.sessions.RequestSubmit(ctx, id)
			if err != nil {
				return ws.StateResponse{}, err
			}
			return ws.StateResponse{State: p.State, Summary: &p.Summary}, nil
		})
	case ws.ActionCancelSubmit:
		state(h.sessions.CancelSubmit)
	case ws.ActionConfirmSubmit:
		st, err := h.sessions.ConfirmSubmit(ctx, id)
		if err != nil {
			var serr *exam.SubmitError
			if errors.As(err, &serr) {
				// Follow the error with the state left behind so the client
				// can offer a retry when answering resumed.
				_ = conn.WriteError(string(response.ErrSubmitFailed), serr.Error())
				_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: st})
				return
			}
			h.writeErr(conn, err)
			return
		}
		_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: st})
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = conn.WriteError(string(response.ErrValidation), "unknown action: "+string(msg.Action))
	}
}

func (h *WSHandler) reply(conn *ws.Conn, id uuid.UUID, fn func() (ws.StateResponse, error)) {
	resp, err := fn()
	if err != nil {
		h.writeErr(conn, err)
		return
	}
	resp.Event = ws.EventState
	if err := conn.WriteTyped(resp); err != nil {
		h.log.Debug().Err(err).Str("session_id", id.String()).Msg("Write failed")
	}
}

func (h *WSHandler) writeErr(conn *ws.Conn, err error) {
	_, code := classify(err)
	_ = conn.WriteError(string(code), response.GetMessage(code))
}
