package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruitment_backend/internal/changestream"
	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/maps"
	"recruitment_backend/internal/scheduler"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/db"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
	platformredis "recruitment_backend/platform/redis"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	redisClient, err := platformredis.New(ctx, cfg)
	if err != nil || redisClient == nil {
		log.Error("scheduler requires redis", "error", err)
		panic("scheduler requires REDIS_URL")
	}
	defer func() { _ = redisClient.Close() }()

	// Closure sweeps publish status changes; boards on the API instances
	// receive them through the shared change stream.
	eventBus := events.NewInMemoryBus(log)
	changestream.Forward(eventBus, changestream.NewRedis(redisClient, cfg.GetChangeStreamPrefix(), log), log)

	store := repository.New(pool)
	auditLog := audit.New(store, audit.WithLogger(log))
	pipelineSvc := pipeline.New(store, auditLog, eventBus, log, metrics.New())

	backfill := scheduler.NewBackfill(store, maps.NewService(cfg, log), nil, log)
	handlers := scheduler.NewHandlers(pipelineSvc, backfill, log)

	worker, err := scheduler.NewWorker(cfg, handlers, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
