package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RouteLogger logs one line per request. 5xx responses log at error level,
// 4xx at warn.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := statusOf(c, err)
		l := zerolog.Ctx(c.UserContext())
		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = l.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}
