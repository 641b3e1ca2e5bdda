package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Metrics on a private registry. Add feeds a counter and
// Store feeds a gauge, both labelled by key.
type Prometheus struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
	tick     prometheus.Histogram
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "waypoint_walk"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Monotonic server counters keyed by event name.",
		}, []string{"key"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "value",
			Help:      "Last reported server values keyed by name.",
		}, []string{"key"}),
		tick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent advancing one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
	p.registry.MustRegister(p.counters, p.gauges, p.tick)
	return p
}

func (p *Prometheus) Add(key string, delta uint64) {
	if p == nil {
		return
	}
	p.counters.WithLabelValues(key).Add(float64(delta))
}

func (p *Prometheus) Store(key string, value uint64) {
	if p == nil {
		return
	}
	p.gauges.WithLabelValues(key).Set(float64(value))
}

// ObserveTick records one tick duration in seconds.
func (p *Prometheus) ObserveTick(seconds float64) {
	if p == nil {
		return
	}
	p.tick.Observe(seconds)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the text exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
