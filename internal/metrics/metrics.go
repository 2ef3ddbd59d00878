// Package metrics holds the Prometheus collectors exported on /metrics.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "schedule_watch"

// Check results.
const (
	ResultUnchanged = "unchanged"
	ResultNewWeeks  = "new_weeks"
	ResultUpdated   = "updated"
	ResultBaseline  = "baseline"
	ResultFailed    = "failed"
)

// Metrics groups the collectors of one daemon.
type Metrics struct {
	checks        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	windows       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Update checks by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		windows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "windows_connected",
			Help:      "Host windows currently connected.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.checks, m.notifications, m.windows, m.lastSuccess)
	}

	return m
}

// ObserveCheck counts one check with its result.
func (m *Metrics) ObserveCheck(result string) {
	if m == nil {
		return
	}

	m.checks.WithLabelValues(result).Inc()

	if result != ResultFailed {
		m.lastSuccess.SetToCurrentTime()
	}
}

// ObserveNotification counts one delivery attempt to a sink.
func (m *Metrics) ObserveNotification(sink string, err error) {
	if m == nil {
		return
	}

	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}

	m.notifications.WithLabelValues(sink, outcome).Inc()
}

// SetWindows reports the number of connected host windows.
func (m *Metrics) SetWindows(n int) {
	if m == nil {
		return
	}

	m.windows.Set(float64(n))
}
