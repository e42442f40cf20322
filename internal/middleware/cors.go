package middleware

import (
	"strings"

	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig selects which browser origins may call the API with credentials.
type CORSConfig struct {
	AllowedSuffix string // e.g. ".bprd.gov.in"
	DevPassword   string // dev-password header value that admits any origin
	AllowLocal    bool   // admit localhost origins for every method, not only preflight
}

const (
	corsAllowHeaders  = "Content-Type, dev-password, Idempotency-Key, X-Trace-Id"
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsExposeHeaders = "X-Trace-Id, Idempotent-Replay"
)

// CORS admits requests without an Origin unchanged. Localhost preflights are
// always answered; everything else must match the suffix, the dev password,
// or AllowLocal.
func CORS(cfg CORSConfig) fiber.Handler {
	suffix := strings.ToLower(cfg.AllowedSuffix)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		preflight := c.Method() == fiber.MethodOptions
		local := isLocalOrigin(origin)

		allowed := (suffix != "" && strings.HasSuffix(strings.ToLower(origin), suffix)) ||
			(local && (preflight || cfg.AllowLocal)) ||
			(cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword)
		if !allowed {
			return response.Forbidden(c, "Not allowed by CORS")
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlExposeHeaders, corsExposeHeaders)
		c.Vary(fiber.HeaderOrigin)
		if preflight {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}
