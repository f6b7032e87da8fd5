// Package http assembles the gin router and the HTTP server around the
// pipeline services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/application/elaboration"
	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/internal/interfaces/http/handlers"
	"github.com/molforge/fragelab/internal/interfaces/http/middleware"
)

// RouterConfig wires the router's collaborators. Elaboration and Runs are
// required for the API routes; everything else is optional.
type RouterConfig struct {
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// Mode selects the gin mode: "debug", "release", or "test".
	Mode string

	Elaboration elaboration.Service
	Runs        runs.Service
	Similarity  handlers.SimilaritySearcher

	// Health is registered at /healthz and /readyz when set.
	Health *handlers.HealthHandler

	// MetricsHandler serves the exposition endpoint when set.
	MetricsHandler http.Handler
	MetricsPath    string

	CORS      *middleware.CORSConfig
	RateLimit *middleware.RateLimitConfig
}

// NewRouter builds the full middleware chain and route table.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))

	cors := middleware.DefaultCORSConfig()
	if cfg.CORS != nil {
		cors = *cfg.CORS
	}
	r.Use(middleware.CORS(cors))

	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/api/v1")

	if cfg.Elaboration != nil {
		fh := handlers.NewFragmentHandler(cfg.Elaboration)
		v1.GET("/fragments", fh.List)
		v1.POST("/elaborations/resolve", fh.Resolve)
	}

	if cfg.Runs != nil {
		rh := handlers.NewRunHandler(cfg.Runs)
		v1.POST("/runs", rh.Create)
		v1.GET("/runs", rh.List)
		v1.GET("/runs/:id", rh.Get)
		v1.GET("/runs/:id/report", rh.Report)
	}

	sh := handlers.NewSimilarityHandler(cfg.Similarity)
	v1.POST("/candidates/similar", sh.Similar)

	return r
}
