package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/metrics"
)

// Dispatcher delivers alerts in the background. Dispatch never blocks the
// caller; sends are paced by a token bucket and are not retried.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a new alert dispatcher
func NewDispatcher(sender Sender, cfg config.NotificationConfig, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.SendTimeout,
		logger:  logger.Named("dispatcher"),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch queues one alert and returns immediately
func (d *Dispatcher) Dispatch(recipient, message string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(recipient, message)
	}()
}

func (d *Dispatcher) send(recipient, message string) {
	if err := d.limiter.Wait(d.ctx); err != nil {
		d.logger.Warn("Alert dropped", zap.String("recipient", recipient), zap.Error(err))
		d.metrics.AlertsTotal.WithLabelValues("dropped").Inc()
		return
	}

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(d.ctx, d.timeout)
		defer cancel()
	}

	if err := d.sender.Send(ctx, recipient, message); err != nil {
		d.logger.Error("Failed to send alert",
			zap.String("recipient", recipient),
			zap.Error(err))
		d.metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}

	d.logger.Info("Alert sent", zap.String("recipient", recipient))
	d.metrics.AlertsTotal.WithLabelValues("sent").Inc()
}

// Wait blocks until every dispatched alert has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close abandons alerts still waiting for a rate token and waits for the rest
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
