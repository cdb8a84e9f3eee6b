package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one process. Collectors are
// registered against a private registry so tests can construct multiple
// instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	GraphOperations      *prometheus.CounterVec
	GraphOperationErrors *prometheus.CounterVec
	GraphLatencySeconds  *prometheus.HistogramVec

	Navigations   *prometheus.CounterVec
	LoaderNotFound prometheus.Counter
	AuthRedirects  prometheus.Counter

	AuditEventsPublished prometheus.Counter
	AuditPublishFailures prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		GraphOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warikan_graph_operations_total",
			Help: "Graph operations executed, by operation name",
		}, []string{"operation"}),
		GraphOperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warikan_graph_operation_errors_total",
			Help: "Graph operations that failed, by operation name and error code",
		}, []string{"operation", "code"}),
		GraphLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warikan_graph_latency_seconds",
			Help:    "Latency of graph operations",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		Navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warikan_navigations_total",
			Help: "Navigations resolved by the route loader tree, by route",
		}, []string{"route"}),
		LoaderNotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "warikan_loader_not_found_total",
			Help: "Navigations ending in a not-found response",
		}),
		AuthRedirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "warikan_auth_redirects_total",
			Help: "Navigations redirected for missing authentication",
		}),
		AuditEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "warikan_audit_events_published_total",
			Help: "Audit events delivered to the broker",
		}),
		AuditPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "warikan_audit_publish_failures_total",
			Help: "Audit events that failed to publish and will be retried",
		}),
	}
}

// Handler exposes the registry for a /metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
