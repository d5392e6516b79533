package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
	"github.com/fuomag9/checkpulse/internal/store"
)

// PassReport summarizes one scheduler pass
type PassReport struct {
	Listed  int
	Skipped int
	Probed  int
}

// CheckScheduler runs a probe for every stored check
type CheckScheduler struct {
	store     store.Store
	prober    Prober
	processor *Processor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewCheckScheduler creates a new check scheduler
func NewCheckScheduler(s store.Store, prober Prober, processor *Processor, logger *zap.Logger, m *metrics.Metrics) *CheckScheduler {
	return &CheckScheduler{
		store:     s,
		prober:    prober,
		processor: processor,
		logger:    logger.Named("scheduler"),
		metrics:   m,
	}
}

// RunPass lists all checks and probes each one concurrently. It returns
// once every probe of the pass has been processed. Individual failures
// are logged and never abort the pass.
func (s *CheckScheduler) RunPass(ctx context.Context) PassReport {
	start := time.Now()
	log := s.logger.With(zap.String("pass_id", uuid.NewString()))

	ids, err := s.store.List(ctx, models.ChecksCollection)
	if err != nil {
		log.Error("Failed to list checks", zap.Error(err))
		return PassReport{}
	}
	if len(ids) == 0 {
		log.Info("No checks to process")
		return PassReport{}
	}

	var skipped, probed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if s.runOne(gctx, log, id) {
				probed.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := PassReport{
		Listed:  len(ids),
		Skipped: int(skipped.Load()),
		Probed:  int(probed.Load()),
	}
	s.metrics.PassDuration.Observe(time.Since(start).Seconds())
	s.metrics.ChecksSkipped.Add(float64(report.Skipped))
	log.Info("Check pass complete",
		zap.Int("listed", report.Listed),
		zap.Int("probed", report.Probed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", time.Since(start)))

	return report
}

func (s *CheckScheduler) runOne(ctx context.Context, log *zap.Logger, id string) bool {
	log = log.With(zap.String("check_id", id))

	raw, err := s.store.Read(ctx, models.ChecksCollection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("Check disappeared before it could be read")
		} else {
			log.Error("Failed to read check", zap.Error(err))
		}
		return false
	}

	check, err := models.ValidateCheck(raw)
	if err != nil {
		log.Warn("One of the checks is not properly formatted, skipping it", zap.Error(err))
		return false
	}

	outcome := s.prober.Probe(ctx, check)
	if ctx.Err() != nil {
		// A cancelled probe says nothing about the target.
		log.Warn("Probe interrupted by shutdown, outcome discarded", zap.Error(ctx.Err()))
		return false
	}
	s.processor.Process(ctx, check, outcome)
	return true
}
