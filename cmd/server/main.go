package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/database"
	"github.com/stemsi/exstem-casebook/internal/grading"
	"github.com/stemsi/exstem-casebook/internal/handler"
	"github.com/stemsi/exstem-casebook/internal/logger"
	"github.com/stemsi/exstem-casebook/internal/repository"
	"github.com/stemsi/exstem-casebook/internal/router"
	"github.com/stemsi/exstem-casebook/internal/service"
	"github.com/stemsi/exstem-casebook/internal/session"
	"github.com/stemsi/exstem-casebook/internal/submission"
	"github.com/stemsi/exstem-casebook/internal/validator"
	"github.com/stemsi/exstem-casebook/internal/worker"
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
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Casebook")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Scenario Content ─────────────────────────────────────────
	provider, err := content.Load(cfg.ContentFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scenario content")
	}

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ─── Connect to PostgreSQL (optional) ──────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	if pool != nil {
		defer pool.Close()
	}

	// ─── Initialize Gateways ───────────────────────────────────────────
	clock := session.SystemClock{}
	timer := session.NewTimer(session.DefaultAllotments, cfg.PhaseTimeUnit)
	registry := session.NewRegistry(clock, timer, provider)

	grader := grading.NewGateway(ctx, cfg, log)
	submitter := submission.NewFormGateway(cfg.SubmissionTimeout)
	if cfg.SubmissionURL == "" {
		log.Warn().Msg("SUBMISSION_URL not set, students must export CSV")
	}

	var publisher service.EventPublisher = service.NopPublisher{}
	var archiver submission.Archiver = submission.NopArchiver{}
	if rdb != nil {
		publisher = service.NewRedisPublisher(rdb, log)
		if pool != nil && cfg.ArchiveEnabled {
			archiver = submission.NewRedisArchiver(rdb)
		}
	}

	// ─── Initialize Services ──────────────────────────────────────────
	assetService := service.NewAssetService(cfg.AssetDir, provider)
	proctor := service.NewProctorVerifier(cfg.AdminPassword, cfg.AdminPasswordHash)
	sessionService := service.NewExamSessionService(service.ExamSessionDeps{
		Registry:      registry,
		Content:       provider,
		Assets:        assetService,
		Verifier:      proctor,
		Grader:        grader,
		Submitter:     submitter,
		Archiver:      archiver,
		Publisher:     publisher,
		Clock:         clock,
		SubmissionURL: cfg.SubmissionURL,
	}, log)
	monitorService := service.NewMonitorService(registry, publisher, clock, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	monitorHandler := handler.NewMonitorHandler(rdb, monitorService, log)
	var submissionRepo *repository.SubmissionRepository
	if pool != nil {
		submissionRepo = repository.NewSubmissionRepository(pool)
		monitorHandler.WithArchive(submissionRepo)
	}

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		Asset:   handler.NewAssetHandler(assetService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor: monitorHandler,
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	reaper := worker.NewReaperWorker(monitorService, cfg.SessionIdleTTL, reapInterval, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		reaper.Start(workerCtx)
	}()

	if rdb != nil && submissionRepo != nil && cfg.ArchiveEnabled {
		submissionWorker := worker.NewSubmissionWorker(submissionRepo, rdb, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			submissionWorker.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(proctor, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Int("sessions", registry.Len()).Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
