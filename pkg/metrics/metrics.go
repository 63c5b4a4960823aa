package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "schemagate"

// Validation latency is dominated by JSON decoding; buckets run 50µs to 1s.
var durationBuckets = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1}

// Collector records validation metrics. It satisfies validation.Recorder.
type Collector struct {
	registry *prometheus.Registry

	validations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	unmatched   *prometheus.CounterVec
	routes      prometheus.Gauge
}

// NewCollector registers the schemagate metrics on registry. A nil registry
// gets a fresh one that also carries the Go runtime and process collectors.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation decisions by phase and result.",
		}, []string{"phase", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating a request or response.",
			Buckets:   durationBuckets,
		}, []string{"phase"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_requests_total",
			Help:      "Requests that matched no schema route and passed through.",
		}, []string{"method"}),
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_routes",
			Help:      "Routes in the loaded schema index.",
		}),
	}
	registry.MustRegister(c.validations, c.duration, c.unmatched, c.routes)
	return c
}

// ObserveValidation records one validation decision.
func (c *Collector) ObserveValidation(phase, result string, elapsed time.Duration) {
	c.validations.WithLabelValues(phase, result).Inc()
	c.duration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// ObserveUnmatched records a request that no schema route matched. Methods
// are upper-cased so label cardinality stays bounded by the method set.
func (c *Collector) ObserveUnmatched(method string) {
	c.unmatched.WithLabelValues(strings.ToUpper(method)).Inc()
}

// SetRoutes records the size of the schema index.
func (c *Collector) SetRoutes(n int) {
	c.routes.Set(float64(n))
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
