package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruitment_backend/internal/changestream"
	"recruitment_backend/internal/email"
	"recruitment_backend/internal/events"
	"recruitment_backend/internal/exports"
	apphttp "recruitment_backend/internal/http"
	"recruitment_backend/internal/http/router"
	"recruitment_backend/internal/leads"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/maps"
	"recruitment_backend/internal/notification"
	"recruitment_backend/internal/scheduler"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/db"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
	platformredis "recruitment_backend/platform/redis"
	"recruitment_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	redisClient, err := platformredis.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		log.Warn("REDIS_URL not configured; geocode cache, cross-instance change stream and job queue disabled")
	}

	eventBus := events.NewInMemoryBus(log)
	m := metrics.New()
	val := validator.New()
	store := repository.New(pool)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	mapsService := maps.NewService(cfg, log)
	var geocoder ranking.Geocoder = mapsService
	if redisClient != nil {
		geocoder = maps.NewCachedGeocoder(mapsService, redisClient, cfg.GetGeocodeCacheTTL(), log)
	}

	leadsModule := leads.NewModule(store, eventBus, geocoder, val, cfg, log, m)

	jobs, closeJobs := initJobClient(cfg, log)
	if jobs != nil {
		defer closeJobs()
		leadsModule.SetTrialCloser(jobs)
	}

	notificationModule := notification.New(notification.Deps{
		Board:       leadsModule.ManagementService(),
		Transcripts: leadsModule.MessagesService(),
		Status:      leadsModule.PipelineService(),
		Notes:       leadsModule.ManagementService(),
		MarkReader:  leadsModule.MessagesService(),
	}, cfg, val, log, m)
	defer notificationModule.Close()

	startChangeStream(ctx, redisClient, cfg, eventBus, notificationModule, log)

	if !cfg.GetEmailEnabled() {
		log.Warn("SMTP not configured; referral emails disabled")
	}
	notification.NewReferrals(leadsModule.ManagementService(), email.NewSender(cfg), cfg.GetBoardURL(), log).RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      pool,
		PublicRate:  cfg.PublicSubmitRate,
		PublicBurst: cfg.PublicSubmitBurst,
		Modules: []apphttp.Module{
			leadsModule,
			maps.NewModule(mapsService),
			notificationModule,
			exports.NewModule(leadsModule.ManagementService(), val),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// SSE streams end when their channels close.
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// startChangeStream routes lead events to connected boards. With Redis the
// events fan out through Pub/Sub so every API instance sees them.
func startChangeStream(ctx context.Context, client *redis.Client, cfg config.RealtimeConfig, bus events.Bus, sink changestream.Sink, log *logger.Logger) {
	if client == nil {
		changestream.Forward(bus, changestream.NewLocal(sink), log)
		return
	}

	stream := changestream.NewRedis(client, cfg.GetChangeStreamPrefix(), log)
	changestream.Forward(bus, stream, log)
	go func() {
		if err := stream.Run(ctx, sink, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("change stream subscriber stopped", "error", err)
		}
	}()
}

func initJobClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; trial closure runs inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
