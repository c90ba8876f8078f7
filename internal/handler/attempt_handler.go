package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocatalyst/exam-engine/internal/middleware"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
)

// AttemptHandler serves reviews of past attempts.
type AttemptHandler struct {
	sessions *service.SessionService
}

func NewAttemptHandler(sessions *service.SessionService) *AttemptHandler {
	return &AttemptHandler{sessions: sessions}
}

// GetReview godoc
// GET /api/v1/attempts/:attempt_id/review
// Verdicts are recomputed from the stored answers and the answer key.
func (h *AttemptHandler) GetReview(c *gin.Context) {
	attemptID := c.Param("attempt_id")
	if attemptID == "" || len(attemptID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	r, err := h.sessions.ReviewAttempt(c.Request.Context(), middleware.UpstreamToken(c), attemptID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, r)
}
