package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fuomag9/checkpulse/internal/logstore"
	"github.com/fuomag9/checkpulse/internal/metrics"
)

// LogStore is the subset of log storage the rotator needs
type LogStore interface {
	List(ctx context.Context, includeArchived bool) ([]string, error)
	Stage(ctx context.Context, logID string) error
	ReadStaged(ctx context.Context, logID string) ([]byte, error)
	WriteArchive(ctx context.Context, archiveID string, data []byte) error
	RemoveStaged(ctx context.Context, logID string) error
}

// RotationReport summarizes one rotation pass
type RotationReport struct {
	Listed   int
	Archived int
	Empty    int
	Failed   int
}

// Rotator moves live logs aside, compresses them into archives and then
// deletes the staged copy. A staged copy is deleted only after its archive
// has been written; one left behind is archived by the next pass.
type Rotator struct {
	logs    LogStore
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRotator creates a new log rotator
func NewRotator(logs LogStore, logger *zap.Logger, m *metrics.Metrics) *Rotator {
	return &Rotator{
		logs:    logs,
		now:     time.Now,
		logger:  logger.Named("rotator"),
		metrics: m,
	}
}

// RunPass rotates every live log concurrently and waits for all of them
func (r *Rotator) RunPass(ctx context.Context) RotationReport {
	start := time.Now()
	log := r.logger.With(zap.String("pass_id", uuid.NewString()))

	ids, err := r.logs.List(ctx, false)
	if err != nil {
		log.Error("Failed to list logs", zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("list").Inc()
		return RotationReport{}
	}
	if len(ids) == 0 {
		log.Info("No logs to rotate")
		return RotationReport{}
	}

	var archived, empty, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			switch r.rotate(gctx, log.With(zap.String("log_id", id)), id) {
			case rotated:
				archived.Add(1)
			case skippedEmpty:
				empty.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := RotationReport{
		Listed:   len(ids),
		Archived: int(archived.Load()),
		Empty:    int(empty.Load()),
		Failed:   int(failed.Load()),
	}
	r.metrics.RotationDuration.Observe(time.Since(start).Seconds())
	log.Info("Rotation pass complete",
		zap.Int("listed", report.Listed),
		zap.Int("archived", report.Archived),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed))

	return report
}

type rotateResult int

const (
	rotated rotateResult = iota
	skippedEmpty
	rotateFailed
)

func (r *Rotator) rotate(ctx context.Context, log *zap.Logger, id string) rotateResult {
	recovered := false

	err := r.logs.Stage(ctx, id)
	if errors.Is(err, logstore.ErrStagedExists) {
		log.Warn("Archiving log left staged by an interrupted rotation")
		switch r.archiveStaged(ctx, log, id) {
		case rotateFailed:
			return rotateFailed
		case rotated:
			recovered = true
		}
		err = r.logs.Stage(ctx, id)
	}
	if err != nil {
		if errors.Is(err, logstore.ErrNotFound) {
			if recovered {
				return rotated
			}
			return skippedEmpty
		}
		log.Error("Failed to stage log", zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("stage").Inc()
		return rotateFailed
	}

	result := r.archiveStaged(ctx, log, id)
	if result == skippedEmpty && recovered {
		return rotated
	}
	return result
}

func (r *Rotator) archiveStaged(ctx context.Context, log *zap.Logger, id string) rotateResult {
	raw, err := r.logs.ReadStaged(ctx, id)
	if err != nil {
		if errors.Is(err, logstore.ErrNotFound) {
			return skippedEmpty
		}
		log.Error("Failed to read staged log", zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("read").Inc()
		return rotateFailed
	}
	if len(raw) == 0 {
		if err := r.logs.RemoveStaged(ctx, id); err != nil && !errors.Is(err, logstore.ErrNotFound) {
			log.Warn("Failed to remove empty staged log", zap.Error(err))
		}
		return skippedEmpty
	}

	encoded, err := logstore.Compress(raw)
	if err != nil {
		log.Error("Failed to compress log", zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("compress").Inc()
		return rotateFailed
	}

	archiveID := fmt.Sprintf("%s-%d", id, r.now().UnixMilli())
	if err := r.logs.WriteArchive(ctx, archiveID, []byte(encoded)); err != nil {
		log.Error("Failed to write archive", zap.String("archive_id", archiveID), zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("archive").Inc()
		return rotateFailed
	}
	r.metrics.ArchivesWritten.Inc()

	if err := r.logs.RemoveStaged(ctx, id); err != nil {
		log.Error("Failed to remove staged log after archiving", zap.String("archive_id", archiveID), zap.Error(err))
		r.metrics.RotationFailures.WithLabelValues("cleanup").Inc()
		return rotateFailed
	}

	log.Debug("Log rotated", zap.String("archive_id", archiveID))
	return rotated
}
