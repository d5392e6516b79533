package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/checkpulse/internal/api"
	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/database"
	"github.com/fuomag9/checkpulse/internal/jobs"
	"github.com/fuomag9/checkpulse/internal/logging"
	"github.com/fuomag9/checkpulse/internal/logstore"
	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/monitor"
	"github.com/fuomag9/checkpulse/internal/notification"
	"github.com/fuomag9/checkpulse/internal/store"
	"github.com/fuomag9/checkpulse/internal/uptime"
	"github.com/fuomag9/checkpulse/internal/websocket"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "checkpulse: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "checkpulse: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	records, closeStore, err := openStore(cfg.Store, cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeStore()

	logs, err := logstore.New(cfg.Rotation.LogDir)
	if err != nil {
		return fmt.Errorf("failed to open log storage: %w", err)
	}

	sender, err := notification.NewSender(cfg.Notification)
	if err != nil {
		return fmt.Errorf("failed to build notification sender: %w", err)
	}
	dispatcher := notification.NewDispatcher(sender, cfg.Notification, logger, m)
	defer dispatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(cfg.HTTP.CORSOrigins, logger)
	go hub.Run(ctx)

	processor, err := monitor.NewProcessor(records, logs, dispatcher, cfg.Notification.AlertTemplate, logger, m,
		monitor.WithPublisher(hub))
	if err != nil {
		return fmt.Errorf("failed to build outcome processor: %w", err)
	}
	prober := monitor.NewHTTPProber(cfg.Probe, logger, m)
	checks := monitor.NewCheckScheduler(records, prober, processor, logger, m)
	rotator := jobs.NewRotator(logs, logger, m)
	limiter := api.NewRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)

	scheduler := jobs.NewScheduler(logger)
	scheduler.Add(jobs.Job{
		Name:     "checks",
		Interval: cfg.Scheduler.Interval,
		Run:      func(ctx context.Context) { checks.RunPass(ctx) },
	})
	scheduler.Add(jobs.Job{
		Name:     "rotation",
		Interval: cfg.Rotation.Interval,
		Run:      func(ctx context.Context) { rotator.RunPass(ctx) },
	})
	if !cfg.HTTP.Disabled {
		scheduler.Add(jobs.Job{
			Name:     "limiter-cleanup",
			Interval: limiterCleanupInterval,
			Run: func(ctx context.Context) {
				if n := limiter.Cleanup(limiterIdleTimeout); n > 0 {
					logger.Debug("Evicted idle rate limiters", zap.Int("count", n))
				}
			},
		})
	}
	scheduler.Start()

	var server *http.Server
	serverErr := make(chan error, 1)
	if !cfg.HTTP.Disabled {
		server = &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: api.NewRouter(cfg, api.Deps{
				Store:    records,
				Logs:     logs,
				Uptime:   uptime.NewCalculator(logs),
				Hub:      hub,
				Gatherer: reg,
				Limiter:  limiter,
				Logger:   logger,
			}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			ErrorLog:     zap.NewStdLog(logger.Named("http")),
		}

		go func() {
			logger.Info("Ops server starting", zap.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	logger.Info("Worker started",
		zap.String("store", cfg.Store.Driver),
		zap.Duration("check_interval", cfg.Scheduler.Interval),
		zap.Duration("rotation_interval", cfg.Rotation.Interval),
		zap.String("notification_provider", cfg.Notification.Provider),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("Shutting down worker", zap.String("signal", sig.String()))
	case err := <-serverErr:
		runErr = fmt.Errorf("ops server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Ops server forced to shutdown", zap.Error(err))
		}
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Background jobs did not finish in time", zap.Error(err))
	}

	logger.Info("Worker exited")
	return runErr
}

// openStore builds the record store named by cfg.Driver
func openStore(cfg config.StoreConfig, dataDir string) (store.Store, func(), error) {
	if cfg.Driver == "file" {
		s, err := store.NewFileStore(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return s, func() {}, nil
	}

	if err := database.RunMigrations(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	return store.NewGormStore(db), func() { sqlDB.Close() }, nil
}
