package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	traceIDHeader = "X-Trace-Id"
	traceIDLocal  = "trace_id"
)

// Tracing tags the request with a trace ID, keeping a well-formed incoming
// X-Trace-Id. The user context carries a logger with the trace_id field so
// services can log through zerolog.Ctx(ctx).
func Tracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(traceIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals(traceIDLocal, id)
		c.Set(traceIDHeader, id)

		l := log.With().Str("trace_id", id).Logger()
		c.SetUserContext(l.WithContext(c.UserContext()))
		return c.Next()
	}
}

// GetTraceID returns the request's trace ID, or "" before Tracing ran.
func GetTraceID(c *fiber.Ctx) string {
	id, _ := c.Locals(traceIDLocal).(string)
	return id
}
