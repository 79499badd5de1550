// Package metrics define las métricas Prometheus del servicio.
// Vive aparte para que middlewares y servicios las compartan sin ciclos de import.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados del guard de administración.
const (
	OutcomeGranted         = "granted"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
	OutcomeError           = "error"
)

// Metrics agrupa los collectors. Un nil *Metrics es válido y no registra nada.
type Metrics struct {
	gatherer prometheus.Gatherer

	GuardDecisions      *prometheus.CounterVec
	AIGatewayRequests   *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New crea y registra las métricas en reg. Con reg nil usa el registry por defecto.
func New(reg *prometheus.Registry) (*Metrics, error) {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		gatherer: gatherer,
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_guard_decisions_total",
			Help: "Decisiones del guard de administración por resultado",
		}, []string{"outcome"}), // granted|unauthenticated|forbidden|error
		AIGatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_requests_total",
			Help: "Llamadas al gateway de IA por tipo y status",
		}, []string{"type", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	var err error
	m.GuardDecisions, err = register(registerer, m.GuardDecisions)
	if err != nil {
		return nil, err
	}
	m.AIGatewayRequests, err = register(registerer, m.AIGatewayRequests)
	if err != nil {
		return nil, err
	}
	m.HTTPRequests, err = register(registerer, m.HTTPRequests)
	if err != nil {
		return nil, err
	}
	m.HTTPRequestDuration, err = register(registerer, m.HTTPRequestDuration)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// GuardDecision cuenta una decisión del guard.
func (m *Metrics) GuardDecision(outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(outcome).Inc()
}

// AIGatewayRequest cuenta una llamada al gateway. status 0 = error de red.
func (m *Metrics) AIGatewayRequest(kind string, status int) {
	if m == nil {
		return
	}
	m.AIGatewayRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// RegisterPool agrega gauges del pool de Postgres.
func (m *Metrics) RegisterPool(reg prometheus.Registerer, pool func() *pgxpool.Pool) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	_, err := register[prometheus.Collector](reg, newPoolCollector(pool))
	return err
}

// register registra c ignorando duplicados; ante duplicado retorna el existente.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// poolCollector expone gauges del pool global.
type poolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool func() *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
