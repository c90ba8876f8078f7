package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/backend"
	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/database"
	"github.com/geocatalyst/exam-engine/internal/handler"
	"github.com/geocatalyst/exam-engine/internal/logger"
	"github.com/geocatalyst/exam-engine/internal/middleware"
	"github.com/geocatalyst/exam-engine/internal/repository"
	"github.com/geocatalyst/exam-engine/internal/router"
	"github.com/geocatalyst/exam-engine/internal/service"
	"github.com/geocatalyst/exam-engine/internal/validator"
	"github.com/geocatalyst/exam-engine/internal/worker"
)

const reapInterval = time.Minute

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("upstream", cfg.UpstreamURL).
		Msg("Starting GeoCatalyst exam engine")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(rdb, cfg.SnapshotTTL)
	queueRepo := repository.NewAttemptQueueRepository(rdb)
	eventRepo := repository.NewEventRepository(rdb)
	cacheRepo := repository.NewCacheRepository(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	upstreamClient := backend.New(cfg.UpstreamURL, cfg.UpstreamTimeout, nil, log)
	upstream := func(token string) service.Upstream {
		return upstreamClient.WithTokens(backend.StaticToken(token))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())

	authService := service.NewAuthService(cfg)
	sessionService := service.NewSessionService(
		workerCtx, upstream, authService,
		snapshotRepo, queueRepo, attemptRepo, eventRepo,
		service.SessionConfig{
			SnapshotTTL:   cfg.SnapshotTTL,
			Idle:          cfg.SessionIdle,
			SubmitTimeout: cfg.SubmitTimeout,
		},
		log,
	)
	leaderboardService := service.NewLeaderboardService(upstream, cacheRepo, cfg.LeaderboardRefresh, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:     handler.NewSessionHandler(sessionService),
		Events:      handler.NewEventsHandler(sessionService, log),
		Attempt:     handler.NewAttemptHandler(sessionService),
		Leaderboard: handler.NewLeaderboardHandler(leaderboardService),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(
			map[string]handler.Check{
				"postgres": pool.Ping,
				"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			},
			sessionService.Len,
			func(ctx context.Context) (int64, error) {
				return rdb.LLen(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
			},
			log,
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	var wg sync.WaitGroup
	archiveWorker := worker.NewArchiveWorker(attemptRepo, rdb, cfg.ArchiveBatchSize, log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		archiveWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sessionService.RunReaper(workerCtx, reapInterval)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(workerCtx, cfg.RateLimitPerMinute, time.Minute)
	}
	r := router.SetupRouter(authService, handlers, limiter, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Hijacked WebSockets are not
	// tracked by Shutdown and end when their sessions close below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop every timer and drop live session snapshots.
	log.Info().Int("live", sessionService.Len()).Msg("Closing live sessions")
	sessionService.Shutdown(shutdownCtx)

	// 3. Stop workers; the archive worker flushes what it holds.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
