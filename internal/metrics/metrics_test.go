package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Record verifies counters and gauges move as expected.
func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCheck(ResultUnchanged)
	m.ObserveCheck(ResultNewWeeks)
	m.ObserveCheck(ResultFailed)
	m.ObserveNotification("log", nil)
	m.ObserveNotification("desktop", errors.New("notify-send missing"))
	m.SetWindows(2)

	require.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues(ResultUnchanged)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues(ResultFailed)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.notifications.WithLabelValues("desktop", "failed")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.windows), 0)
	require.Positive(t, testutil.ToFloat64(m.lastSuccess))

	count, err := testutil.GatherAndCount(reg, "schedule_watch_checks_total")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

// TestMetrics_NilIsNoop makes sure a nil receiver is safe.
func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveCheck(ResultUpdated)
		m.ObserveNotification("log", nil)
		m.SetWindows(1)
	})
}
