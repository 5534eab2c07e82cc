// Package api serves the extraction pipeline and run review over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/monitoring"
	"github.com/sells-group/funding-intake/internal/pipeline"
	"github.com/sells-group/funding-intake/internal/sink"
	"github.com/sells-group/funding-intake/internal/store"
)

// Config contains server settings.
type Config struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	pipeline  *pipeline.Pipeline
	store     store.Store
	approver  *sink.Approver
	collector *monitoring.Collector
	metrics   *metrics.Metrics
	sem       *semaphore.Weighted
	cfg       Config
}

// New creates a Server. approver and m may be nil.
func New(p *pipeline.Pipeline, st store.Store, approver *sink.Approver, m *metrics.Metrics, cfg Config) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		pipeline:  p,
		store:     st,
		approver:  approver,
		collector: monitoring.NewCollector(st),
		metrics:   m,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:       cfg,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/lenders/extract", s.handleLenderExtract)
		r.Post("/vendors/scan", s.handleVendorScan)
		r.Post("/customers/recommend", s.handleRecommend)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/runs/{id}/approve", s.handleApprove)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
