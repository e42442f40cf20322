package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bprd-credits/internal/config"
	"bprd-credits/internal/interfaces/router"
	"bprd-credits/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var fiberApp *fiber.App
var appCfg *config.Config
var startupDB *gorm.DB
var startupRdb *redis.Client

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	appCfg = cfg
	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		panic("app create: " + err.Error())
	}
	fiberApp = app
	startupDB = db
	startupRdb = rdb
}

func Handler(w http.ResponseWriter, r *http.Request) {
	adaptor.FiberApp(fiberApp)(w, r)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if startupDB != nil {
		sqlDB, err := startupDB.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres: get DB")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		log.Info().Msg("postgres connected")
	} else {
		log.Warn().Msg("DATABASE_URL not set, only health routes are mounted")
	}
	if startupRdb != nil {
		if err := startupRdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		if err := fiberApp.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
		if startupRdb != nil {
			_ = startupRdb.Close()
		}
	}()

	log.Info().Str("port", appCfg.Port).Str("env", appCfg.Env).Msg("server starting")
	if err := fiberApp.Listen(":" + appCfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
