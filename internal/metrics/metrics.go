package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"embymerge/internal/merge"
)

const namespace = "embymerge"

// Manager owns the registry and the embymerge collectors.
type Manager struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	requests *prometheus.HistogramVec
	scans    *prometheus.CounterVec
}

// NewManager builds a registry with Go runtime, process, and embymerge metrics.
func NewManager() *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Merge decision outcomes by pipeline and kind.",
		}, []string{"pipeline", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emby_request_duration_seconds",
			Help:      "Latency of Emby API requests by operation and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed library scans by trigger and result.",
		}, []string{"trigger", "result"}),
	}
	registry.MustRegister(m.outcomes, m.requests, m.scans)

	for _, pipeline := range []string{merge.PipelineWebhook, merge.PipelineScan} {
		for _, kind := range merge.Kinds() {
			m.outcomes.WithLabelValues(pipeline, string(kind))
		}
	}
	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOutcome implements merge.Recorder.
func (m *Manager) RecordOutcome(pipeline string, kind merge.Kind) {
	m.outcomes.WithLabelValues(pipeline, string(kind)).Inc()
}

// ObserveRequest matches emby.RequestObserver. A zero status means the
// request never produced a response.
func (m *Manager) ObserveRequest(operation string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(operation, label).Observe(elapsed.Seconds())
}

// RecordScan counts a finished scan.
func (m *Manager) RecordScan(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.scans.WithLabelValues(trigger, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
