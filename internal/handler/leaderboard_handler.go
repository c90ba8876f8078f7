package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocatalyst/exam-engine/internal/middleware"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
)

// LeaderboardHandler serves rendered leaderboards.
type LeaderboardHandler struct {
	leaderboards *service.LeaderboardService
}

func NewLeaderboardHandler(leaderboards *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboards: leaderboards}
}

// GetLeaderboard godoc
// GET /api/v1/leaderboard/:test_id
// Clients poll this every refresh_after_seconds.
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	testID := c.Param("test_id")
	if testID == "" || len(testID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	v, err := h.leaderboards.Get(c.Request.Context(), middleware.UpstreamToken(c), testID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, v)
}
