package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func withUser(user map[string]interface{}) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	}
}

func TestSession_LoadsUserFromRedis(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, "session:abc", `{"user":{"user_id":"u1","role":"student","student_id":"S-1"}}`, 0).Err())

	app := fiber.New()
	app.Use(Session(rdb, ""))
	app.Get("/me", func(c *fiber.Ctx) error {
		a, ok := GetActor(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(fiber.Map{"user_id": a.UserID, "role": a.Role, "student_id": a.StudentID})
	})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", "bprd.sid=s:abc.signature")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "u1", out["user_id"])
	assert.Equal(t, "S-1", out["student_id"])

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", "bprd.sid=missing")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSession_NilRedis(t *testing.T) {
	app := fiber.New()
	app.Use(Session(nil, ""), RequireAuth())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "bprd.sid=abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthorizePermission(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	cases := []struct {
		name   string
		user   map[string]interface{}
		perm   string
		status int
	}{
		{"no user", nil, "approve_as_poc", fiber.StatusUnauthorized},
		{"poc approves", map[string]interface{}{"user_id": "p", "role": "poc"}, "approve_as_poc", fiber.StatusOK},
		{"student cannot approve", map[string]interface{}{"user_id": "s", "role": "student"}, "approve_as_admin", fiber.StatusForbidden},
		{"unknown permission", map[string]interface{}{"user_id": "a", "role": "admin"}, "nope", fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			var mw []fiber.Handler
			if tc.user != nil {
				mw = append(mw, withUser(tc.user))
			}
			mw = append(mw, AuthorizePermission(tc.perm), ok)
			app.Get("/", mw...)
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestActor_CanActFor(t *testing.T) {
	assert.True(t, Actor{UserID: "s", Role: "student", StudentID: "S-1"}.CanActFor("S-1"))
	assert.False(t, Actor{UserID: "s", Role: "student", StudentID: "S-1"}.CanActFor("S-2"))
	assert.False(t, Actor{UserID: "s", Role: "student"}.CanActFor(""))
	assert.True(t, Actor{UserID: "a", Role: "admin"}.CanActFor("S-2"))
	assert.False(t, Actor{UserID: "x", Role: "visitor"}.CanActFor("S-2"))
}

func TestTracing_KeepsIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := "6f1c3a52-3c1e-4d6b-9a43-1f6f0c4b2a10"
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", resp.Header.Get("X-Trace-Id"))
	assert.Len(t, resp.Header.Get("X-Trace-Id"), 36)
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	rdb := newRedis(t)
	calls := 0
	app := fiber.New()
	app.Post("/claims",
		withUser(map[string]interface{}{"user_id": "u1", "role": "student"}),
		Idempotency(rdb, time.Hour),
		func(c *fiber.Ctx) error {
			calls++
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
		})

	send := func() (int, string, string) {
		req := httptest.NewRequest("POST", "/claims", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "k-1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, resp.Header.Get("Idempotent-Replay"), string(body)
	}

	status, replayed, body := send()
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Empty(t, replayed)

	status2, replayed2, body2 := send()
	assert.Equal(t, fiber.StatusCreated, status2)
	assert.Equal(t, "true", replayed2)
	assert.Equal(t, body, body2)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	rdb := newRedis(t)
	require.NoError(t, rdb.Set(context.Background(), "idem:u1:POST:/claims:k-2", `{"state":"pending"}`, time.Hour).Err())

	app := fiber.New()
	app.Post("/claims",
		withUser(map[string]interface{}{"user_id": "u1", "role": "student"}),
		Idempotency(rdb, time.Hour),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	req := httptest.NewRequest("POST", "/claims", nil)
	req.Header.Set("Idempotency-Key", "k-2")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestIdempotency_ServerErrorsAreNotCached(t *testing.T) {
	rdb := newRedis(t)
	calls := 0
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/claims", Idempotency(rdb, time.Hour), func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/claims", nil)
		req.Header.Set("Idempotency-Key", "k-3")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_PassThroughWithoutRedis(t *testing.T) {
	calls := 0
	app := fiber.New()
	app.Post("/claims", Idempotency(nil, time.Hour), func(c *fiber.Ctx) error {
		calls++
		return c.SendStatus(fiber.StatusCreated)
	})
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/claims", nil)
		req.Header.Set("Idempotency-Key", "k-4")
		_, err := app.Test(req)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestHealthMarker_CountsAndLogsErrors(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusInternalServerError, "boom") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, p := range []string{"/ok", "/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}

	total, err := rdb.Get(ctx, KeyReqTotal).Int()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	failed, err := rdb.Get(ctx, KeyReqErrors).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	entries, err := rdb.LRange(ctx, KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &entry))
	assert.Equal(t, "boom", entry["message"])
	assert.Equal(t, "/boom", entry["path"])
}

func TestHealthMarker_NilRedis(t *testing.T) {
	app := fiber.New()
	app.Use(HealthMarker(nil))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".bprd.gov.in", DevPassword: "pw"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := []struct {
		name, method, origin, devPassword string
		want                              int
	}{
		{"no origin", "GET", "", "", fiber.StatusOK},
		{"suffix match", "GET", "https://training.bprd.gov.in", "", fiber.StatusOK},
		{"suffix preflight", "OPTIONS", "https://training.bprd.gov.in", "", fiber.StatusNoContent},
		{"local preflight", "OPTIONS", "http://localhost:5173", "", fiber.StatusNoContent},
		{"local request", "GET", "http://localhost:5173", "", fiber.StatusForbidden},
		{"dev password", "GET", "https://elsewhere.example", "pw", fiber.StatusOK},
		{"foreign origin", "GET", "https://elsewhere.example", "", fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.devPassword != "" {
				req.Header.Set("dev-password", tc.devPassword)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	local := fiber.New()
	local.Use(CORS(CORSConfig{AllowLocal: true}))
	local.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	resp, err := local.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestParseSessionCookie_Signed(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("abc"))
	sig := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, "abc", parseSessionCookie("s:abc."+sig, "secret"))
	assert.Equal(t, "abc", parseSessionCookie(url.PathEscape("s:abc."+sig), "secret"))
	assert.Equal(t, "", parseSessionCookie("s:abc.forged", "secret"))
	assert.Equal(t, "", parseSessionCookie("abc", "secret"))

	assert.Equal(t, "abc", parseSessionCookie("s:abc.anything", ""))
	assert.Equal(t, "abc", parseSessionCookie("abc", ""))
}
