package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/response"
)

const healthTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler reports dependency status and service load.
type HealthHandler struct {
	checks    map[string]Check
	live      func() int
	queueLen  func(ctx context.Context) (int64, error)
	startTime time.Time
	log       zerolog.Logger
}

// NewHealthHandler creates a HealthHandler. live counts hosted sessions
// and queueLen reports the archive backlog; either may be nil.
func NewHealthHandler(checks map[string]Check, live func() int, queueLen func(ctx context.Context) (int64, error), log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		live:      live,
		queueLen:  queueLen,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthReport struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
	LiveSessions int               `json:"live_sessions"`
	ArchiveQueue int64             `json:"archive_queue"`
	Goroutines   int               `json:"goroutines"`
	GoVersion    string            `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 503 when any dependency fails its probe.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	rep := healthReport{
		Status:       "ok",
		Uptime:       formatUptime(time.Since(h.startTime)),
		Dependencies: make(map[string]string, len(h.checks)),
		Goroutines:   runtime.NumGoroutine(),
		GoVersion:    runtime.Version(),
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			rep.Dependencies[name] = "down"
			rep.Status = "degraded"
			continue
		}
		rep.Dependencies[name] = "up"
	}
	if h.live != nil {
		rep.LiveSessions = h.live()
	}
	if h.queueLen != nil {
		rep.ArchiveQueue, _ = h.queueLen(ctx)
	}

	status := http.StatusOK
	if rep.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, rep)
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	if days == 0 {
		return d.String()
	}
	return fmt.Sprintf("%dd %s", days, d-time.Duration(days)*24*time.Hour)
}
