package monitor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
)

// maxDrainBytes bounds how much of a response body is read before closing
const maxDrainBytes = 64 << 10

// HTTPProber probes http and https checks
type HTTPProber struct {
	client    *http.Client
	guard     *SSRFProtection
	userAgent string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewHTTPProber creates a prober. The per-probe deadline comes from each
// check, so the client itself has no timeout.
func NewHTTPProber(cfg config.ProbeConfig, logger *zap.Logger, m *metrics.Metrics) *HTTPProber {
	guard := NewSSRFProtection(cfg.AllowPrivateIPs)
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         guard.DialContext(dialer),
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &HTTPProber{
		client: &http.Client{
			Transport: transport,
			// The first response is the outcome.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		guard:     guard,
		userAgent: cfg.UserAgent,
		logger:    logger.Named("prober"),
		metrics:   m,
	}
}

// Probe issues one request for the check and classifies the result. It
// never mutates the check and never retries.
func (p *HTTPProber) Probe(ctx context.Context, check *models.Check) models.Outcome {
	target := check.Target()

	u, err := url.Parse(target)
	if err != nil {
		return models.OutcomeError(err.Error())
	}
	if err := p.guard.CheckHost(u.Hostname()); err != nil {
		return models.OutcomeError(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(check.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, check.Method, target, nil)
	if err != nil {
		return models.OutcomeError(err.Error())
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	p.metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(ctx, err) {
			return models.OutcomeError(models.TimeoutMessage)
		}
		p.logger.Debug("Probe failed", zap.String("check_id", check.ID), zap.Error(err))
		return models.OutcomeError(err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return models.OutcomeStatus(resp.StatusCode)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
