// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	httperrors "github.com/afrinexa/portal/internal/http/errors"
	"github.com/afrinexa/portal/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// Pinger es cualquier dependencia chequeable (proveedor de identidad, Postgres, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta una función a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check es una dependencia con nombre.
type Check struct {
	Name   string
	Pinger Pinger
}

type readyResponse struct {
	Status     string            `json:"status"` // ready | unavailable
	Components map[string]string `json:"components,omitempty"`
}

// Controller maneja /healthz y /readyz.
type Controller struct {
	checks  []Check
	timeout time.Duration
}

// NewController crea el controller.
func NewController(checks ...Check) *Controller {
	return &Controller{checks: checks, timeout: 3 * time.Second}
}

// Healthz: liveness, sin dependencias.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, readyResponse{Status: "ok"})
}

// Readyz maneja GET /readyz.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	results := make([]string, len(c.checks))
	var g errgroup.Group
	for i, chk := range c.checks {
		i, chk := i, chk
		g.Go(func() error {
			if err := chk.Pinger.Ping(ctx); err != nil {
				log.Warn("dependency not ready", logger.String("component", chk.Name), logger.Err(err))
				results[i] = "unavailable"
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	resp := readyResponse{Status: "ready", Components: make(map[string]string, len(c.checks))}
	for i, chk := range c.checks {
		resp.Components[chk.Name] = results[i]
	}
	status := http.StatusOK
	if err != nil {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v readyResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
