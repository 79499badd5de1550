package router

import (
	"net/http"

	aiassistctrl "github.com/afrinexa/portal/internal/http/controllers/aiassist"
	"github.com/afrinexa/portal/internal/http/errors"
	mw "github.com/afrinexa/portal/internal/http/middlewares"
	"github.com/afrinexa/portal/internal/rate"
	"github.com/go-chi/chi/v5"
)

// AIAssistPath es la ruta que consume el editor del blog.
const AIAssistPath = "/functions/v1/blog-ai-assist"

// AIAssistRouterDeps contiene las dependencias de la función de asistencia.
type AIAssistRouterDeps struct {
	Controller  *aiassistctrl.Controller
	Guard       mw.Middleware
	RateLimiter rate.Limiter
	CORSOrigins []string
}

// RegisterAIAssistRoutes registra la función privilegiada.
// Orden: CORS (el preflight termina ahí) -> no-store -> guard -> rate limit -> controller.
// El limiter corre después del guard: 401/403 siempre se auditan y la cuota es por identidad.
func RegisterAIAssistRoutes(r chi.Router, deps AIAssistRouterDeps) {
	guard := deps.Guard
	if guard == nil {
		// sin guard configurado la ruta falla cerrada
		guard = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				errors.WriteError(w, errors.ErrAuthorizationUnavailable)
			})
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(
			mw.WithCORS(deps.CORSOrigins),
			mw.WithNoStore(),
			guard,
			mw.WithRateLimit(mw.RateLimitConfig{
				Limiter: deps.RateLimiter,
				KeyFunc: mw.IdentityRateKey,
			}),
		)
		r.Post(AIAssistPath, deps.Controller.Assist)
		r.Options(AIAssistPath, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
}
