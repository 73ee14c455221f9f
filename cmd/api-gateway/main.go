package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-solver-api/api/swagger"
	"github.com/noah-isme/timetable-solver-api/internal/handler"
	"github.com/noah-isme/timetable-solver-api/internal/repository"
	"github.com/noah-isme/timetable-solver-api/internal/service"
	"github.com/noah-isme/timetable-solver-api/migrations"
	"github.com/noah-isme/timetable-solver-api/pkg/cache"
	"github.com/noah-isme/timetable-solver-api/pkg/config"
	"github.com/noah-isme/timetable-solver-api/pkg/database"
	"github.com/noah-isme/timetable-solver-api/pkg/jobs"
	"github.com/noah-isme/timetable-solver-api/pkg/logger"
	"github.com/noah-isme/timetable-solver-api/pkg/storage"
)

// @title Timetable Solver API
// @version 1.0.0
// @description Backtracking course timetabling with run history, async solves and exports.
// @BasePath /api/v1
// @schemes http

const exportCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	var db *sqlx.DB
	if cfg.RunHistory.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
		}
		defer db.Close()
		applied, err := migrations.Up(ctx, db.DB)
		if err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
		logr.Sugar().Infow("migrations applied", "count", applied)
	}

	var resultCache *service.CacheService
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// Solving continues uncached.
			logr.Sugar().Warnw("redis unavailable, result cache disabled", "error", err)
		} else {
			defer client.Close()
			resultCache = newResultCache(client, metrics, cfg, logr)
		}
	}

	// Optional dependencies stay untyped nil when disabled.
	var runs service.ScheduleRunStore
	if db != nil {
		runs = repository.NewScheduleRunRepository(db)
	}
	var solveCache service.SolveResultCache
	if resultCache != nil {
		solveCache = resultCache
	}

	solver := service.NewScheduleSolverService(runs, solveCache, metrics, validator.New(), logr, service.ScheduleSolverConfig{
		DefaultTotalSlots: cfg.Solver.DefaultTotalSlots,
		TooBusyRatio:      cfg.Solver.TooBusyRatio,
		MorningCutoff:     cfg.Solver.MorningCutoff,
		MaxNodes:          cfg.Solver.MaxNodes,
		Timeout:           cfg.Solver.Timeout,
		MaxTotalSlots:     cfg.Solver.MaxTotalSlots,
		MaxCourses:        cfg.Solver.MaxCourses,
		CacheTTL:          cfg.Cache.TTL,
	})

	var queue *jobs.Queue[string]
	if cfg.Async.Enabled && runs == nil {
		logr.Warn("async solving needs run history, async disabled")
	} else if cfg.Async.Enabled {
		worker := service.NewSolveWorker(solver, logr)
		queue = jobs.NewQueue[string]("schedule-solve", worker.Handle, jobs.QueueConfig[string]{
			Workers:     cfg.Async.WorkerConcurrency,
			BufferSize:  cfg.Async.QueueSize,
			MaxRetries:  cfg.Async.WorkerRetries,
			Logger:      logr,
			OnExhausted: worker.MarkFailed,
		})
		queue.Start(ctx)
		solver.EnableAsync(queue)
		solver.RecoverPendingJobs(ctx)
	}

	var exporter handler.ScheduleExporter
	if cfg.Exports.Enabled && runs == nil {
		logr.Warn("exports need run history, exports disabled")
	} else if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService := service.NewExportService(runs, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		go cleanupExports(ctx, exportService, logr)
		exporter = exportService
	}

	scheduleHandler := handler.NewScheduleHandler(solver, exporter, cfg.APIPrefix)
	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Ready:          readiness(db),
	}, logr, metrics, scheduleHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Warnw("http shutdown error", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting",
		"addr", server.Addr,
		"env", cfg.Env,
		"run_history", solver.HistoryEnabled(),
		"result_cache", resultCache.Enabled(),
		"async", queue != nil,
		"exports", exporter != nil,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}

	if queue != nil {
		// In-flight runs are reset to QUEUED and recovered on next start.
		queue.Stop()
	}
	logr.Info("server stopped")
}

func newResultCache(client redis.Cmdable, metrics *service.MetricsService, cfg *config.Config, logr *zap.Logger) *service.CacheService {
	repo := repository.NewCacheRepository(client, "timetable:", logr)
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true)
}

func readiness(db *sqlx.DB) func() bool {
	if db == nil {
		return nil
	}
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.PingContext(ctx) == nil
	}
}

func cleanupExports(ctx context.Context, exporter *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(exportCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exporter.Cleanup(0); err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
			}
		}
	}
}
