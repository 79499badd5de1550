// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"

	aiassistctrl "github.com/afrinexa/portal/internal/http/controllers/aiassist"
	healthctrl "github.com/afrinexa/portal/internal/http/controllers/health"
	"github.com/afrinexa/portal/internal/http/errors"
	mw "github.com/afrinexa/portal/internal/http/middlewares"
	"github.com/afrinexa/portal/internal/metrics"
	"github.com/afrinexa/portal/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	AIAssist *aiassistctrl.Controller
	Health   *healthctrl.Controller
	Metrics  *metrics.Metrics

	// Guard es RequireAdmin ya configurado.
	Guard       mw.Middleware
	RateLimiter rate.Limiter // opcional
	CORSOrigins []string
}

// New retorna el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(deps.Metrics),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})

	if deps.Health != nil {
		RegisterHealthRoutes(r, HealthRouterDeps{Controller: deps.Health, Metrics: deps.Metrics})
	}
	if deps.AIAssist != nil {
		RegisterAIAssistRoutes(r, AIAssistRouterDeps{
			Controller:  deps.AIAssist,
			Guard:       deps.Guard,
			RateLimiter: deps.RateLimiter,
			CORSOrigins: deps.CORSOrigins,
		})
	}
	return r
}
