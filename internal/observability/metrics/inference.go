package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InferenceMetrics tracks provider call volume, failures and a rolling
// average latency. The rolling average is best-effort shared state:
// nothing downstream depends on it for correctness.
type InferenceMetrics struct {
	registry *prometheus.Registry
	service  string

	callsTotal    *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	avgLatency    *prometheus.GaugeVec

	mu      sync.Mutex
	rolling map[string]rollingAvg
}

type rollingAvg struct {
	count int64
	avg   float64
}

func NewInferenceMetrics(service string) *InferenceMetrics {
	registry := prometheus.NewRegistry()

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodflow",
			Subsystem: "inference",
			Name:      "provider_calls_total",
			Help:      "Total provider calls by provider and task kind.",
		},
		[]string{"service", "provider", "kind"},
	)
	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodflow",
			Subsystem: "inference",
			Name:      "provider_failures_total",
			Help:      "Failed provider attempts by provider and reason.",
		},
		[]string{"service", "provider", "reason"},
	)
	avgLatency := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foodflow",
			Subsystem: "inference",
			Name:      "provider_latency_avg_seconds",
			Help:      "Rolling average provider latency in seconds.",
		},
		[]string{"service", "provider"},
	)

	registry.MustRegister(callsTotal, failuresTotal, avgLatency)

	return &InferenceMetrics{
		registry:      registry,
		service:       service,
		callsTotal:    callsTotal,
		failuresTotal: failuresTotal,
		avgLatency:    avgLatency,
		rolling:       make(map[string]rollingAvg),
	}
}

func (m *InferenceMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *InferenceMetrics) ObserveCall(provider, kind string, latency time.Duration) {
	m.callsTotal.WithLabelValues(m.service, provider, kind).Inc()

	m.mu.Lock()
	r := m.rolling[provider]
	r.count++
	r.avg += (latency.Seconds() - r.avg) / float64(r.count)
	m.rolling[provider] = r
	m.mu.Unlock()

	m.avgLatency.WithLabelValues(m.service, provider).Set(r.avg)
}

func (m *InferenceMetrics) ObserveFailure(provider, reason string) {
	m.failuresTotal.WithLabelValues(m.service, provider, reason).Inc()
}
