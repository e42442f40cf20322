// Command reconcile repairs work interrupted between an approval and its
// side effects: approved credits not yet applied, approved claims not yet
// finalized and drifted student totals.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bprd-credits/internal/app"
	"bprd-credits/internal/config"
	"bprd-credits/internal/infrastructure/database"
	"bprd-credits/internal/pkg/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	tasks := pflag.StringSlice("tasks", nil, "tasks to run (default: all, in order)")
	migrate := pflag.Bool("migrate", false, "run AutoMigrate before reconciling")
	concurrency := pflag.Int("concurrency", 0, "override RECONCILE_CONCURRENCY")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	if *concurrency > 0 {
		cfg.ReconcileConcurrency = *concurrency
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if *migrate {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("auto migrate")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := app.NewServices(cfg, db)
	runs, err := svc.Reconcile.Run(ctx, *tasks...)
	for _, r := range runs {
		log.Info().
			Str("task", r.Name).
			Int("scanned", r.Scanned).
			Int("fixed", r.Fixed).
			Int("failed", r.Failed).
			Msg("reconcile summary")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("reconcile")
	}
}
