// Package metrics expone métricas Prometheus de sincronización e ingesta.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager agrupa los colectores. Usa un registro propio para no mezclar métricas de proceso.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	syncRuns        *prometheus.CounterVec
	syncRecords     *prometheus.CounterVec
	syncPages       *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	upstreamRetries *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

// Option configura el Manager.
type Option func(*Manager)

// WithNamespace prefijo de todas las métricas.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry usa un registro existente.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithHistogramBuckets buckets para la duración de corridas (segundos).
func WithHistogramBuckets(b []float64) Option {
	return func(m *Manager) {
		if len(b) > 0 {
			m.buckets = b
		}
	}
}

// NewManager crea y registra los colectores.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "crm",
		buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	f := promauto.With(m.registry)

	m.syncRuns = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "sync", Name: "runs_total",
		Help: "Corridas de sincronización por origen y resultado.",
	}, []string{"source", "outcome"})
	m.syncRecords = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "sync", Name: "records_total",
		Help: "Registros procesados por origen y resultado.",
	}, []string{"source", "result"})
	m.syncPages = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "sync", Name: "pages_total",
		Help: "Páginas confirmadas por origen.",
	}, []string{"source"})
	m.syncDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "sync", Name: "run_duration_seconds",
		Help: "Duración de las corridas de sincronización.", Buckets: m.buckets,
	}, []string{"source"})
	m.upstreamRetries = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "sync", Name: "upstream_retries_total",
		Help: "Reintentos contra el origen por motivo (rate_limited, transport).",
	}, []string{"source", "reason"})
	m.webhooks = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "webhook", Name: "requests_total",
		Help: "Webhooks recibidos por origen y resultado.",
	}, []string{"source", "outcome"})
	return m
}

// RunStats contadores de una corrida (espejo de entity.SyncStats, sin dependencia del dominio).
type RunStats struct {
	Inserted, Updated, Skipped, Errors, Pages int
}

// ObserveSyncRun registra el resultado de una corrida.
func (m *Manager) ObserveSyncRun(source string, success bool, s RunStats, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.syncRuns.WithLabelValues(source, outcome).Inc()
	m.syncRecords.WithLabelValues(source, "inserted").Add(float64(s.Inserted))
	m.syncRecords.WithLabelValues(source, "updated").Add(float64(s.Updated))
	m.syncRecords.WithLabelValues(source, "skipped").Add(float64(s.Skipped))
	m.syncRecords.WithLabelValues(source, "errors").Add(float64(s.Errors))
	m.syncPages.WithLabelValues(source).Add(float64(s.Pages))
	m.syncDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// IncUpstreamRetry cuenta un reintento contra el origen.
func (m *Manager) IncUpstreamRetry(source, reason string) {
	m.upstreamRetries.WithLabelValues(source, reason).Inc()
}

// IncWebhook cuenta un webhook recibido.
func (m *Manager) IncWebhook(source, outcome string) {
	m.webhooks.WithLabelValues(source, outcome).Inc()
}

// Registry registro subyacente (tests y handlers).
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler expone el registro en formato Prometheus.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
