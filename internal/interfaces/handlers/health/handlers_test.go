package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func setupHealthHandlers(t *testing.T) *Handlers {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return &Handlers{Rdb: rdb, DB: okPinger{}, HealthAdminKey: "test-admin-key"}
}

func TestReset_Unauthorized(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/reset", h.Reset)

	for _, url := range []string{"/reset", "/reset?key=wrong"} {
		resp, err := app.Test(httptest.NewRequest("GET", url, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}
}

func TestReset_ClearsStats(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/reset", h.Reset)

	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, "health:global:req_total", "5", 0).Err())
	resp, err := app.Test(httptest.NewRequest("GET", "/reset?key=test-admin-key", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Stats reset successfully", out["message"])

	_, err = h.Rdb.Get(ctx, "health:global:req_total").Result()
	assert.Error(t, err)
	_, err = h.Rdb.Get(ctx, "health:global:start_time").Result()
	assert.NoError(t, err)
}

func TestJSON_ReturnsStructure(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "bprd-credits-api", out["service"])
	assert.Equal(t, "ok", out["status"])
	assert.Contains(t, out, "runtime")
	assert.Contains(t, out, "traffic")
	assert.Contains(t, out, "dependencies")
}

func TestJSON_DegradedWithoutDependencies(t *testing.T) {
	h := &Handlers{}
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrors_ReturnsArray(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/errors", h.Errors)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var arr []interface{}
	require.NoError(t, json.Unmarshal(body, &arr))
	assert.Empty(t, arr)

	ctx := context.Background()
	h.Rdb.LPush(ctx, "health:global:error_log", `{"time":"2026-01-01T12:00:00Z","path":"/api/v1/claims","method":"POST","message":"test"}`)
	resp2, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	body2, _ := io.ReadAll(resp2.Body)
	var arr2 []map[string]interface{}
	require.NoError(t, json.Unmarshal(body2, &arr2))
	assert.Len(t, arr2, 1)
	assert.Equal(t, "test", arr2[0]["message"])
}

func TestErrors_Limit(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/errors", h.Errors)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Rdb.LPush(ctx, "health:global:error_log", `{"message":"boom"}`).Err())
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors?limit=2", nil))
	require.NoError(t, err)
	var arr []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&arr))
	assert.Len(t, arr, 2)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
