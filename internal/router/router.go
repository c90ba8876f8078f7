package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/handler"
	"github.com/geocatalyst/exam-engine/internal/middleware"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session     *handler.SessionHandler
	Events      *handler.EventsHandler
	Attempt     *handler.AttemptHandler
	Leaderboard *handler.LeaderboardHandler
	WS          *handler.WSHandler
	Health      *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.SessionTokenHeader}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.Brotli())

	limit := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		limit = limiter.Middleware()
	}

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")

	// ─── 1. Upstream bearer routes ─────────────────────────────────────
	upstream := api.Group("")
	upstream.Use(middleware.RequireUpstreamToken(), limit)
	{
		upstream.POST("/tests/:test_id/sessions", middleware.NoStore(), handlers.Session.CreateSession)
		upstream.GET("/attempts/:attempt_id/review", middleware.PrivateMaxAge(60), handlers.Attempt.GetReview)
		upstream.GET("/leaderboard/:test_id", middleware.PrivateMaxAge(int(cfg.LeaderboardRefresh/time.Second)), handlers.Leaderboard.GetLeaderboard)
	}

	// ─── 2. Live session routes (session token) ────────────────────────
	sessions := api.Group("/sessions/:session_id")
	sessions.Use(
		middleware.RequireSessionToken(authService),
		middleware.RequireSessionOwner(),
		limit,
		middleware.NoStore(),
	)
	{
		sessions.GET("", handlers.Session.GetState)
		sessions.DELETE("", handlers.Session.CloseSession)
		sessions.GET("/instructions", handlers.Session.GetInstructions)
		sessions.POST("/begin", handlers.Session.Begin)
		sessions.POST("/input", handlers.Session.Input)
		sessions.POST("/save-next", handlers.Session.SaveAndNext)
		sessions.POST("/mark-review", handlers.Session.MarkForReview)
		sessions.POST("/clear", handlers.Session.ClearResponse)
		sessions.POST("/jump", handlers.Session.Jump)
		sessions.POST("/submit", handlers.Session.RequestSubmit)
		sessions.POST("/submit/cancel", handlers.Session.CancelSubmit)
		sessions.POST("/submit/confirm", handlers.Session.ConfirmSubmit)
		sessions.GET("/progress", handlers.Session.GetProgress)
		sessions.GET("/review", handlers.Session.GetReview)
		sessions.GET("/events", handlers.Events.StreamEvents)
	}

	// ─── 3. WebSocket (session token via ?token=) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionToken(authService), middleware.RequireSessionOwner())
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
