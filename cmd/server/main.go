package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/database"
	"github.com/certprep/certprep-backend/internal/handler"
	"github.com/certprep/certprep-backend/internal/logger"
	"github.com/certprep/certprep-backend/internal/middleware"
	"github.com/certprep/certprep-backend/internal/repository"
	"github.com/certprep/certprep-backend/internal/router"
	"github.com/certprep/certprep-backend/internal/service"
	"github.com/certprep/certprep-backend/internal/validator"
	"github.com/certprep/certprep-backend/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("rate_limit_backend", cfg.RateLimitBackend).
		Msg("Starting CertPrep Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	anonRepo := repository.NewAnonymousSessionRepository(pool)
	statsRepo := repository.NewQuestionStatsRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	var stats service.StatsPublisher
	if rdb != nil {
		stats = service.NewRedisStatsPublisher(rdb)
	}

	authService := service.NewAuthService(cfg, userRepo)
	identityService := service.NewIdentityService(authService, anonRepo, rdb, log)
	examService := service.NewExamService(questionRepo, examRepo, stats, cfg.Exam, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Exam:   handler.NewExamHandler(examService),
		System: handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(identityService, rateStore(cfg, rdb, log), handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// ─── HTTP Server ───────────────────────────────────────────────────
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Background Workers ────────────────────────────────────────────
	if rdb != nil {
		statsWorker := worker.NewStatsWorker(statsRepo, rdb, log)
		g.Go(func() error {
			statsWorker.Start(gctx)
			return nil
		})
	}

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// rateStore picks the rate-limit backend. A Redis backend without a Redis
// connection falls back to memory.
func rateStore(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) middleware.RateStore {
	if cfg.RateLimitBackend == "redis" {
		if rdb != nil {
			return middleware.NewRedisRateStore(rdb)
		}
		log.Warn().Msg("RATE_LIMIT_BACKEND=redis but REDIS_URL is not set; using in-memory rate limiting")
	}
	return middleware.NewMemoryRateStore()
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
