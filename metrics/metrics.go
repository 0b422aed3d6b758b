package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cldpip"

// Result label values.
const (
	Success  = "success"
	Failure  = "failure"
	Changed  = "changed"
	Same     = "unchanged"
	Rejected = "rejected"
)

// Metrics holds the collectors of one running updater. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	polls         *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	updated       prometheus.Counter
	notifications *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	lastChange    prometheus.Gauge
	duration      prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Address polls by outcome.",
		}, []string{"result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_attempts_total",
			Help:      "Reconciliation attempts by outcome.",
		}, []string{"result"}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_updated_total",
			Help:      "DNS records rewritten to a new address.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Address change notifications by outcome.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Address change events waiting for the reconciler.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last detected address change.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time from receiving a change to convergence.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.polls,
		m.attempts,
		m.updated,
		m.notifications,
		m.queueDepth,
		m.lastChange,
		m.duration,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Poll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

func (m *Metrics) Attempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordsUpdated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.updated.Add(float64(n))
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Changed(at time.Time) {
	if m == nil {
		return
	}
	m.lastChange.Set(float64(at.UnixNano()) / 1e9)
}

func (m *Metrics) Converged(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
