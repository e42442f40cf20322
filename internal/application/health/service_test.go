package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

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

func TestCollect_NilDependencies(t *testing.T) {
	report := Collect(context.Background(), nil, nil)
	assert.Equal(t, ServiceName, report.Service)
	assert.Equal(t, "issue", report.Status)
	assert.Equal(t, "disconnected", report.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", report.Dependencies["redis"].Status)
	assert.Equal(t, 0, report.Traffic.TotalRequests)
}

func TestCollect_Traffic(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	report := Collect(ctx, rdb, stubPinger{})
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "100", report.Traffic.SuccessRate)
	assert.NotNil(t, report.Dependencies["database"].PingMs)

	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:last_request", `{"path":"/api/v1/claims"}`, 0).Err())

	report = Collect(ctx, rdb, stubPinger{})
	assert.Equal(t, 10, report.Traffic.TotalRequests)
	assert.Equal(t, 2, report.Traffic.FailedCount)
	assert.Equal(t, 8, report.Traffic.SuccessCount)
	assert.Equal(t, "80.0", report.Traffic.SuccessRate)
	assert.Equal(t, "15.05", report.Traffic.AvgResponseTime)
	assert.Equal(t, map[string]interface{}{"path": "/api/v1/claims"}, report.Traffic.LastRequest)
}

func TestCollect_DatabaseError(t *testing.T) {
	report := Collect(context.Background(), newRedis(t), stubPinger{err: errors.New("down")})
	assert.Equal(t, "error", report.Dependencies["database"].Status)
	assert.Nil(t, report.Dependencies["database"].PingMs)
	assert.Equal(t, "issue", report.Status)
}

func TestRecentErrors(t *testing.T) {
	ctx := context.Background()
	out, err := RecentErrors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	rdb := newRedis(t)
	rdb.LPush(ctx, "health:global:error_log", `{"message":"first"}`, "not json", `{"message":"second"}`)
	out, err = RecentErrors(ctx, rdb)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[0]["message"])
}

func TestReset(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "5", 0).Err())

	now := time.UnixMilli(1700000000000)
	require.NoError(t, Reset(ctx, rdb, now))

	_, err := rdb.Get(ctx, "health:global:req_total").Result()
	assert.ErrorIs(t, err, redis.Nil)
	start, err := rdb.Get(ctx, "health:global:start_time").Result()
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", start)
}
