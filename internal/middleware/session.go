package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Sessions are written by the portal that owns login; this service only reads them.
const (
	SessionCookieName  = "bprd.sid"
	SessionRedisPrefix = "session:"
)

// Session loads the session user from redis into Locals("user").
// A nil client leaves every request anonymous. With a non-empty secret only
// cookies signed as "s:<id>.<hmac>" are accepted.
func Session(rdb *redis.Client, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		sessionID := parseSessionCookie(c.Cookies(SessionCookieName), secret)
		if sessionID == "" || rdb == nil {
			return c.Next()
		}

		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Ctx(c.UserContext()).Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data struct {
			User map[string]interface{} `json:"user"`
		}
		if err := json.Unmarshal(b, &data); err == nil && data.User != nil {
			c.Locals(userLocal, data.User)
		}
		return c.Next()
	}
}

// parseSessionCookie accepts "id", "s:id" and "s:id.signature", URL-encoded
// or not. When secret is set the signature must be the unpadded base64
// HMAC-SHA256 of id.
func parseSessionCookie(v, secret string) string {
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	if !strings.HasPrefix(v, "s:") {
		if secret != "" {
			return ""
		}
		return v
	}
	id, sig, _ := strings.Cut(v[2:], ".")
	if secret == "" {
		return id
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	want := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ""
	}
	return id
}
