package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
)

func newTestProber(allowPrivate bool) *HTTPProber {
	return NewHTTPProber(
		config.ProbeConfig{AllowPrivateIPs: allowPrivate, UserAgent: "checkpulse-test"},
		zap.NewNop(),
		metrics.New(prometheus.NewRegistry()),
	)
}

func checkFor(srv *httptest.Server, method string, timeout int) *models.Check {
	c := sampleCheck(checkID)
	c.Protocol = models.ProtocolHTTP
	c.URL = strings.TrimPrefix(srv.URL, "http://") + "/health"
	c.Method = method
	c.TimeoutSeconds = timeout
	return c
}

func TestProbe_ReturnsStatus(t *testing.T) {
	var gotMethod, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUA = r.UserAgent()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := checkFor(srv, http.MethodPut, 2)
	before := *c.Clone()

	outcome := newTestProber(true).Probe(context.Background(), c)

	assert.Equal(t, models.OutcomeStatus(http.StatusAccepted), outcome)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "checkpulse-test", gotUA)
	assert.Equal(t, before, *c)
}

func TestProbe_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	outcome := newTestProber(true).Probe(context.Background(), checkFor(srv, http.MethodGet, 2))
	assert.Equal(t, http.StatusFound, outcome.StatusCode)
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	outcome := newTestProber(true).Probe(context.Background(), checkFor(srv, http.MethodGet, 2))

	assert.Equal(t, models.OutcomeError(models.TimeoutMessage), outcome)
	assert.True(t, outcome.IsTimeout())
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestProbe_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := checkFor(srv, http.MethodGet, 2)
	srv.Close()

	outcome := newTestProber(true).Probe(context.Background(), c)
	assert.Zero(t, outcome.StatusCode)
	assert.NotEmpty(t, outcome.Error)
	assert.False(t, outcome.IsTimeout())
}

func TestProbe_BlocksPrivateTargets(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	outcome := newTestProber(false).Probe(context.Background(), checkFor(srv, http.MethodGet, 2))

	assert.Contains(t, outcome.Error, "not allowed")
	assert.Zero(t, hits)
}
