package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/logstore"
	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
	"github.com/fuomag9/checkpulse/internal/store"
	"github.com/fuomag9/checkpulse/internal/uptime"
)

const validID = "abcdefghij0123456789"

type testEnv struct {
	srv   *httptest.Server
	store *store.FileStore
	logs  *logstore.Store
}

func newTestEnv(t *testing.T, rateLimit float64) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Environment = "development"
	cfg.HTTP.CORSOrigins = []string{"http://localhost:3000"}
	cfg.HTTP.RateLimit = rateLimit
	cfg.HTTP.RateBurst = 2

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	logs, err := logstore.New(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics.New(reg).ProbesTotal.WithLabelValues("UP").Inc()

	router := NewRouter(cfg, Deps{
		Store:    s,
		Logs:     logs,
		Uptime:   uptime.NewCalculator(logs),
		Gatherer: reg,
		Logger:   zap.NewNop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: s, logs: logs}
}

func (e *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func validCheck() *models.Check {
	return &models.Check{
		ID:             validID,
		OwnerID:        "5551234567",
		Protocol:       models.ProtocolHTTPS,
		URL:            "example.com",
		Method:         "GET",
		SuccessCodes:   []int{200},
		TimeoutSeconds: 3,
		State:          models.StateUp,
		LastCheckedAt:  1700000000000,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 100)
	code, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)
	code, body := env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `checkpulse_probe_total{state="UP"} 1`)
}

func TestGetChecks(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, models.ChecksCollection, validID, validCheck()))
	require.NoError(t, env.store.Create(ctx, models.ChecksCollection, "broken", map[string]interface{}{"id": "broken"}))

	code, body := env.get(t, "/api/checks")
	require.Equal(t, http.StatusOK, code)

	var got []CheckSummary
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 2)

	byID := map[string]CheckSummary{}
	for _, s := range got {
		byID[s.ID] = s
	}
	assert.Equal(t, models.StateUp, byID[validID].State)
	assert.Equal(t, "GET https://example.com", byID[validID].Target)
	assert.NotEmpty(t, byID["broken"].Invalid)
}

func TestGetCheck(t *testing.T) {
	env := newTestEnv(t, 100)
	require.NoError(t, env.store.Create(context.Background(), models.ChecksCollection, validID, validCheck()))

	code, body := env.get(t, "/api/checks/"+validID)
	require.Equal(t, http.StatusOK, code)
	var got models.Check
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, *validCheck(), got)

	code, _ = env.get(t, "/api/checks/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLogsEndpoints(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()
	require.NoError(t, env.logs.Append(ctx, validID, `{"n":1}`))

	encoded, err := logstore.Compress([]byte("{\"n\":0}\n"))
	require.NoError(t, err)
	require.NoError(t, env.logs.WriteArchive(ctx, validID+"-1", []byte(encoded)))

	code, body := env.get(t, "/api/logs")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["`+validID+`"]`, body)

	code, body = env.get(t, "/api/logs?archived=true")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["`+validID+`","`+validID+`-1"]`, body)

	code, _ = env.get(t, "/api/logs?archived=maybe")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.get(t, "/api/logs/"+validID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "{\"n\":1}\n", body)

	code, body = env.get(t, "/api/logs/archives/"+validID+"-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "{\"n\":0}\n", body)

	code, _ = env.get(t, "/api/logs/archives/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCheckUptime(t *testing.T) {
	env := newTestEnv(t, 100)
	line, err := json.Marshal(models.LogEntry{Check: *validCheck(), State: models.StateUp, Time: time.Now().UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, env.logs.Append(context.Background(), validID, string(line)))

	code, body := env.get(t, "/api/checks/"+validID+"/uptime?period=1h")
	require.Equal(t, http.StatusOK, code)
	var stats uptime.UptimeStats
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 1, stats.TotalChecks)
	assert.Equal(t, 100.0, stats.UptimePercentage)

	code, _ = env.get(t, "/api/checks/"+validID+"/uptime?period=soon")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 0.001)

	codes := []int{}
	for i := 0; i < 4; i++ {
		code, _ := env.get(t, "/api/logs")
		codes = append(codes, code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)

	// Health is not rate limited.
	code, _ := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	rl.GetLimiter("a")
	rl.GetLimiter("b")

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(-time.Second))
}
