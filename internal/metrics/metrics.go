// Package metrics exposes Prometheus instrumentation for the HTTP
// server and the ledger engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	TransactionsTotal *prometheus.CounterVec
	SyncPublishErrors prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saldo_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_transactions_total",
			Help: "Ledger write operations by type.",
		}, []string{"operation"}),
		SyncPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "saldo_sync_publish_errors_total",
			Help: "Failed publishes to the mirror queue.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "saldo_cache_hits_total",
			Help: "Report cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "saldo_cache_misses_total",
			Help: "Report cache misses.",
		}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
