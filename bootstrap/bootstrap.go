package bootstrap

import (
	"bprd-credits/internal/config"
	"bprd-credits/internal/interfaces/router"
	"bprd-credits/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for the serverless handler in api/.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
