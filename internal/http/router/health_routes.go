package router

import (
	healthctrl "github.com/afrinexa/portal/internal/http/controllers/health"
	"github.com/afrinexa/portal/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// HealthRouterDeps contiene las dependencias de las rutas operativas.
type HealthRouterDeps struct {
	Controller *healthctrl.Controller
	Metrics    *metrics.Metrics
}

// RegisterHealthRoutes registra /healthz, /readyz y /metrics. Son públicas.
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.Get("/healthz", deps.Controller.Healthz)
	r.Get("/readyz", deps.Controller.Readyz)
	r.Method("GET", "/metrics", deps.Metrics.Handler())
}
