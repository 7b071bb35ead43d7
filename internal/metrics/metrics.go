// Package metrics exposes Prometheus collectors for the upload pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photodrop"

type Metrics struct {
	jobs        *prometheus.CounterVec
	steps       *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	replays     *prometheus.CounterVec
	notifyDrops prometheus.Counter
}

// MustNew registers the collectors with reg and panics on conflict.
func MustNew(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Upload jobs by terminal result and failure kind.",
		}, []string{"result", "kind"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Time spent in each pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Jobs waiting or running.",
		}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "credential_replays_total",
			Help:      "Steps replayed after a credential refresh.",
		}, []string{"step"}),
		notifyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Notifications that could not be delivered.",
		}),
	}
	reg.MustRegister(m.jobs, m.steps, m.queueDepth, m.replays, m.notifyDrops)
	return m
}

func (m *Metrics) JobFinished(result, kind string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(result, kind).Inc()
}

func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) CredentialReplay(step string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(step).Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notifyDrops.Inc()
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
