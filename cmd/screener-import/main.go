// Command screener-import loads protocol screeners from a YAML file.
//
//	screener-import -file screeners.yaml
package main

import (
	"context"
	"flag"
	"os"

	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/leads/screener"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/db"
	"recruitment_backend/platform/logger"
)

func main() {
	path := flag.String("file", "screeners.yaml", "YAML screener document")
	dryRun := flag.Bool("dry-run", false, "validate without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting screener import", "file", *path)

	f, err := os.Open(*path)
	if err != nil {
		log.Error("failed to open screener file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	trials, err := screener.Parse(f)
	if err != nil {
		log.Error("invalid screener file", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		log.Info("screener file is valid", "trials", len(trials))
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	n, err := screener.Import(ctx, repository.New(pool), trials)
	if err != nil {
		log.Error("screener import failed", "imported", n, "error", err)
		return
	}
	log.Info("screener import complete", "trials", n)
}
