package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"bprd-credits/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// ServiceName is reported by /health/json.
const ServiceName = "bprd-credits-api"

// ErrorLogLimit is how many error log entries /health/errors returns.
const ErrorLogLimit = 50

// DBPinger is satisfied by *sql.DB. A nil pinger reports the database as disconnected.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

type Report struct {
	Service      string               `json:"service"`
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB  int `json:"allocMb"`
	HeapInMB int `json:"heapInUseMb"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

func ping(fn func() error) DepStatus {
	start := time.Now()
	if err := fn(); err != nil {
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

// Collect pings the database and redis and reads the request counters kept by middleware.HealthMarker.
func Collect(ctx context.Context, rdb *redis.Client, db DBPinger) Report {
	report := Report{
		Service:      ServiceName,
		Dependencies: map[string]DepStatus{},
	}

	dbStatus := DepStatus{Status: "disconnected"}
	if db != nil {
		dbStatus = ping(func() error { return db.PingContext(ctx) })
	}
	report.Dependencies["database"] = dbStatus

	redisStatus := DepStatus{Status: "disconnected"}
	traffic := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startMs := time.Now().UnixMilli()
	if rdb != nil {
		redisStatus = ping(func() error { return rdb.Ping(ctx).Err() })
		if redisStatus.Status == "connected" {
			startMs = readTraffic(ctx, rdb, &traffic, startMs)
		}
	}
	report.Dependencies["redis"] = redisStatus
	report.Traffic = traffic

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	report.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapInMB: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	if dbStatus.Status == "connected" && redisStatus.Status == "connected" {
		report.Status = "ok"
	} else {
		report.Status = "issue"
	}
	return report
}

func readTraffic(ctx context.Context, rdb *redis.Client, t *TrafficInfo, startMs int64) int64 {
	vals, err := rdb.MGet(ctx,
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTime,
		middleware.KeyResCount,
		middleware.KeyStartTime,
		middleware.KeyLastReq,
	).Result()
	if err != nil {
		return startMs
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}

	if s := str(4); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			startMs = v
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startMs, 0)
	}

	t.TotalRequests, _ = strconv.Atoi(str(0))
	t.FailedCount, _ = strconv.Atoi(str(1))
	t.SuccessCount = t.TotalRequests - t.FailedCount
	if t.TotalRequests > 0 {
		t.SuccessRate = strconv.FormatFloat(float64(t.SuccessCount)/float64(t.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	count, _ := strconv.Atoi(str(3))
	if count > 0 {
		t.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	if s := str(5); s != "" {
		var last map[string]interface{}
		if json.Unmarshal([]byte(s), &last) == nil {
			t.LastRequest = last
		}
	}
	return startMs
}

// RecentErrors returns the newest error log entries, newest first. Malformed entries are skipped.
func RecentErrors(ctx context.Context, rdb *redis.Client) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0)
	if rdb == nil {
		return out, nil
	}
	entries, err := rdb.LRange(ctx, middleware.KeyErrorLog, 0, ErrorLogLimit-1).Result()
	if err != nil {
		return out, err
	}
	for _, s := range entries {
		var m map[string]interface{}
		if json.Unmarshal([]byte(s), &m) == nil && m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// Reset clears the request counters and restarts the uptime clock.
func Reset(ctx context.Context, rdb *redis.Client, now time.Time) error {
	keys := []string{
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTime,
		middleware.KeyResCount,
		middleware.KeyStartTime,
		middleware.KeyLastReq,
		middleware.KeyErrorLog,
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(now.UnixMilli(), 10), 0).Err()
}
