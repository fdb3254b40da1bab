// Command site-geocode fills missing site coordinates from Nominatim.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/maps"
	"recruitment_backend/internal/scheduler"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/db"
	"recruitment_backend/platform/logger"
)

const batchSize = 25

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting site geocode backfill")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	backfill := scheduler.NewBackfill(repository.New(pool), maps.NewService(cfg, log), nil, log)
	total, err := backfill.RunAll(ctx, batchSize)
	if err != nil {
		log.Error("site geocode backfill stopped", "geocoded", total, "error", err)
		return
	}
	log.Info("no sites left to geocode", "geocoded", total)
}
