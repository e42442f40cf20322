package health

import (
	"crypto/subtle"
	"strconv"
	"time"

	healthsvc "bprd-credits/internal/application/health"
	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers serves the unauthenticated health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             healthsvc.DBPinger
	HealthAdminKey string
}

func (h *Handlers) adminKeyOK(key string) bool {
	return h.HealthAdminKey != "" &&
		subtle.ConstantTimeCompare([]byte(key), []byte(h.HealthAdminKey)) == 1
}

// Reset GET /reset?key= clears the request counters.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if !h.adminKeyOK(c.Query("key")) {
		return response.Forbidden(c, "Unauthorized")
	}
	if h.Rdb == nil {
		return response.Error(c, "Redis is not configured", fiber.StatusServiceUnavailable, nil)
	}
	if err := healthsvc.Reset(c.UserContext(), h.Rdb, time.Now()); err != nil {
		log.Ctx(c.UserContext()).Error().Err(err).Msg("health reset failed")
		return response.Error(c, "Failed to reset stats", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON GET /health/json answers 503 while a dependency is down.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	report := healthsvc.Collect(c.UserContext(), h.Rdb, h.DB)
	c.Set(fiber.HeaderCacheControl, "no-store")
	if report.Status != "ok" {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(report)
}

// Errors GET /health/errors?limit= returns the newest error log entries.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	entries, err := healthsvc.RecentErrors(c.UserContext(), h.Rdb)
	if err != nil {
		log.Ctx(c.UserContext()).Error().Err(err).Msg("health error log read failed")
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(entries)
}
