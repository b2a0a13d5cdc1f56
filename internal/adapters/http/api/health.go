package api

import (
	"net/http"

	"github.com/okian/perfscore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler serving m's registry.
func NewHealthHandler(m *metrics.Manager) *HealthHandler {
	var gatherer prometheus.Gatherer = prometheus.NewRegistry()
	if reg := m.Registry(); reg != nil {
		gatherer = reg
	}
	return &HealthHandler{metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})}
}

// HandleHealth handles GET /healthz requests by serving Prometheus metrics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
