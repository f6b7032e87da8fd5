package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/pkg/types/common"
)

// checkTimeout bounds each component probe so one stuck dependency cannot
// hold the readiness endpoint open.
const checkTimeout = 2 * time.Second

// Pinger probes one infrastructure component.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness. Liveness only proves the
// process answers; readiness probes every registered component.
type HealthHandler struct {
	components map[string]Pinger
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
	version    string
}

// NewHealthHandler creates the handler. metrics may be nil.
func NewHealthHandler(version string, logger logging.Logger, metrics *prometheus.AppMetrics) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{
		components: make(map[string]Pinger),
		logger:     logger.Named("health"),
		metrics:    metrics,
		version:    version,
	}
}

// Register adds a component to the readiness probe. Nil pingers are ignored
// so optional components can be passed through unconditionally.
func (h *HealthHandler) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	h.components[name] = p
}

// Liveness answers 200 while the process is serving.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up", "version": h.version})
}

// Readiness probes every registered component and answers 503 when any is
// down.
func (h *HealthHandler) Readiness(c *gin.Context) {
	results := make([]common.ComponentHealth, 0, len(h.components))
	allUp := true

	for name, p := range h.components {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		start := time.Now()
		err := p.Ping(ctx)
		cancel()

		ch := common.ComponentHealth{
			Name:    name,
			Status:  common.HealthUp,
			Latency: time.Since(start),
		}
		if err != nil {
			ch.Status = common.HealthDown
			ch.Message = err.Error()
			allUp = false
			h.logger.Warn("component down",
				logging.String("component", name), logging.Err(err))
		}
		h.metrics.SetHealth(name, err == nil)
		results = append(results, ch)
	}

	status := http.StatusOK
	overall := common.HealthUp
	if !allUp {
		status = http.StatusServiceUnavailable
		overall = common.HealthDown
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"version":    h.version,
		"components": results,
	})
}
