package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/store"
	"github.com/fuomag9/checkpulse/internal/uptime"
	"github.com/fuomag9/checkpulse/internal/websocket"
)

// LogReader is the read side of log storage exposed over HTTP
type LogReader interface {
	List(ctx context.Context, includeArchived bool) ([]string, error)
	ReadAll(ctx context.Context, logID string) ([]byte, error)
	ReadArchive(ctx context.Context, archiveID string) ([]byte, error)
}

// Deps holds everything the router serves
type Deps struct {
	Store    store.Store
	Logs     LogReader
	Uptime   *uptime.Calculator
	Hub      *websocket.Hub
	Gatherer prometheus.Gatherer
	Limiter  *RateLimiter
	Logger   *zap.Logger
}

// NewRouter creates the read-only operations router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware(cfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))
		r.Use(middleware.Compress(5))

		r.Get("/checks", HandleGetChecks(deps.Store))
		r.Get("/checks/{id}", HandleGetCheck(deps.Store))
		if deps.Uptime != nil {
			r.Get("/checks/{id}/uptime", HandleGetCheckUptime(deps.Uptime))
		}

		r.Get("/logs", HandleGetLogs(deps.Logs))
		r.Get("/logs/{id}", HandleGetLog(deps.Logs))
		r.Get("/logs/archives/{archiveId}", HandleGetArchive(deps.Logs))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.HandleWebSocket)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
