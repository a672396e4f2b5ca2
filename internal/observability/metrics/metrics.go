// Package metrics holds the Prometheus collectors for the poll loop and the
// notifier.
//
// Labels are closed sets so cardinality stays bounded:
//
//   - result:  ok | empty | error
//   - kind:    the poller's error kind label (fetch, unreachable, ...)
//   - outcome: sent | failed | deduped
//
// Collectors live in a private registry rather than the global default so
// that tests (and multiple App instances) never collide. All methods are safe
// on a nil *Metrics, which turns instrumentation off.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reviewbot"

// Poll results.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
	ResultError = "error"
)

type Metrics struct {
	reg *prometheus.Registry

	polls        *prometheus.CounterVec
	pollErrors   *prometheus.CounterVec
	pollDuration prometheus.Histogram
	lastSuccess  prometheus.Gauge
	fromDate     prometheus.Gauge

	notifications *prometheus.CounterVec
	sendDuration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll iterations by result.",
		}, []string{"result"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Failed poll iterations by error kind.",
		}, []string{"kind"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll iteration (fetch, validate, notify).",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_last_success_timestamp_seconds",
			Help:      "Unix time of the last iteration that completed without error.",
		}),
		fromDate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_from_date_seconds",
			Help:      "Current from_date cursor sent to the review API.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification outcomes.",
		}, []string{"outcome"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_duration_seconds",
			Help:      "Time spent delivering one notification, retries included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
	m.reg.MustRegister(
		m.polls, m.pollErrors, m.pollDuration, m.lastSuccess, m.fromDate,
		m.notifications, m.sendDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObservePoll records one finished iteration. kind is ignored unless result
// is ResultError.
func (m *Metrics) ObservePoll(result, kind string, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(took.Seconds())
	if result == ResultError {
		m.pollErrors.WithLabelValues(kind).Inc()
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

func (m *Metrics) SetFromDate(ts int64) {
	if m == nil {
		return
	}
	m.fromDate.Set(float64(ts))
}

func (m *Metrics) ObserveNotification(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.sendDuration.Observe(took.Seconds())
	}
}
