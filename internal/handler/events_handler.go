package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
	ws "github.com/geocatalyst/exam-engine/internal/websocket"
)

const keepAliveInterval = 30 * time.Second

// EventsHandler streams session events over SSE for clients that cannot
// hold a WebSocket.
type EventsHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

func NewEventsHandler(sessions *service.SessionService, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		sessions: sessions,
		log:      log.With().Str("component", "events_handler").Logger(),
	}
}

// StreamEvents godoc
// GET /api/v1/sessions/:session_id/events
// Sends the current state, then every tick, time-up and submission event.
func (h *EventsHandler) StreamEvents(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	st, err := h.sessions.State(id)
	if err != nil {
		fail(c, err)
		return
	}
	events, cancel, err := h.sessions.Subscribe(reqCtx, id)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", id.String()).Msg("Subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	initial, _ := json.Marshal(ws.StateResponse{Event: ws.EventState, State: st})
	writeSSE(c, initial)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	pingPayload, _ := json.Marshal(ws.PongResponse{Event: ws.EventPong})

	h.log.Debug().Str("session_id", id.String()).Msg("Event stream attached")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Debug().Str("session_id", id.String()).Msg("Event stream detached")
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			// Payloads are already encoded events.
			writeSSE(c, msg)
		case <-keepAlive.C:
			writeSSE(c, pingPayload)
		}
	}
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
