package middleware

import (
	"encoding/json"
	"time"

	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	idempotencyKeyPrefix    = "idem:"
	idempotencyStatePending = "pending"
	idempotencyStateDone    = "done"
	maxIdempotencyKeyLength = 255
)

type cachedResponse struct {
	State       string `json:"state"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first completed (non-5xx) response for a repeated
// Idempotency-Key from the same user on the same route. A retry that arrives
// while the first request is still running gets 409. Requests without the
// header, or with a nil client, pass through.
func Idempotency(rdb *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyKeyHeader)
		if rdb == nil || key == "" || c.Method() == fiber.MethodGet {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLength {
			return response.Error(c, "Idempotency-Key is too long", fiber.StatusBadRequest, nil)
		}

		user := "anonymous"
		if a, ok := GetActor(c); ok {
			user = a.UserID
		}
		redisKey := idempotencyKeyPrefix + user + ":" + c.Method() + ":" + c.Path() + ":" + key
		ctx := c.UserContext()

		pending, _ := json.Marshal(cachedResponse{State: idempotencyStatePending})
		acquired, err := rdb.SetNX(ctx, redisKey, pending, ttl).Result()
		if err != nil {
			log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Msg("idempotency lookup failed")
			return c.Next()
		}
		if !acquired {
			return replay(c, rdb, redisKey)
		}

		err = c.Next()
		status := statusOf(c, err)
		if err != nil || status >= fiber.StatusInternalServerError {
			rdb.Del(ctx, redisKey)
			return err
		}
		done, _ := json.Marshal(cachedResponse{
			State:       idempotencyStateDone,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err := rdb.Set(ctx, redisKey, done, ttl).Err(); err != nil {
			log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Msg("idempotency store failed")
		}
		return nil
	}
}

func replay(c *fiber.Ctx, rdb *redis.Client, redisKey string) error {
	b, err := rdb.Get(c.UserContext(), redisKey).Bytes()
	if err != nil {
		return response.Error(c, "Request with this Idempotency-Key is in progress", fiber.StatusConflict, nil)
	}
	var cached cachedResponse
	if err := json.Unmarshal(b, &cached); err != nil || cached.State != idempotencyStateDone {
		return response.Error(c, "Request with this Idempotency-Key is in progress", fiber.StatusConflict, nil)
	}
	c.Set(IdempotentReplayHeader, "true")
	if cached.ContentType != "" {
		c.Set(fiber.HeaderContentType, cached.ContentType)
	}
	return c.Status(cached.Status).Send(cached.Body)
}
