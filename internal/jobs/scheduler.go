package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a periodic background task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler manages background jobs. Every job runs once immediately on
// Start and then on its interval. A tick fires even while an earlier run
// of the same job is still in progress.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new job scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	logger = logger.Named("jobs")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(logger)))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job; it must be called before Start
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start schedules all registered jobs and kicks off their first run
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.cron.Schedule(cron.Every(job.Interval), cron.FuncJob(func() { s.run(job) }))
		s.logger.Info("Job scheduled", zap.String("job", job.Name), zap.Duration("interval", job.Interval))

		go s.run(job)
	}

	s.cron.Start()
	s.logger.Info("Job scheduler started")
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	start := time.Now()
	job.Run(s.ctx)
	s.logger.Debug("Job finished", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}

// Stop stops scheduling and waits for running jobs to finish. The context
// handed to jobs is cancelled only once ctx expires, and Stop then returns
// ctx.Err().
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("Shutdown deadline reached, cancelling running jobs")
		return ctx.Err()
	}
}
