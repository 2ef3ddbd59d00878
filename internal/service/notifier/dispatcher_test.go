package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/schedule-watch/internal/domain/notification"
	"github.com/oshokin/schedule-watch/internal/metrics"
	"github.com/oshokin/schedule-watch/internal/service/clients"
)

var errSinkDown = errors.New("sink down")

// recordingSink collects requests and optionally fails.
type recordingSink struct {
	name string
	err  error
	got  []*notification.Request
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, req *notification.Request) error {
	r.got = append(r.got, req)

	return r.err
}

// fakePublisher records NATS publishes.
type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data

	return f.err
}

// TestDispatcher_Request fills the fixed presentation fields.
func TestDispatcher_Request(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(Options{
		Icon:  "icons/icon-192.png",
		Badge: "icons/badge-72.png",
		Tag:   "schedule-update",
		URL:   "./",
	}, nil)

	require.Equal(t, &notification.Request{
		Title:    "Schedule updated",
		Body:     "Week 12 has been updated",
		Icon:     "icons/icon-192.png",
		Badge:    "icons/badge-72.png",
		Tag:      "schedule-update",
		Renotify: true,
		Data:     notification.Payload{URL: "./"},
	}, d.Request("Schedule updated", "Week 12 has been updated"))
}

// TestDispatcher_Notify_ContinuesAfterFailure verifies every sink is tried.
func TestDispatcher_Notify_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{name: "failing", err: errSinkDown}
	healthy := &recordingSink{name: "healthy"}

	d := NewDispatcher(Options{Tag: "t"}, metrics.New(prometheus.NewRegistry()), failing, healthy, LogSink{})

	err := d.Notify(context.Background(), "title", "body")
	require.ErrorIs(t, err, errSinkDown)
	require.Len(t, failing.got, 1)
	require.Len(t, healthy.got, 1)
	require.Same(t, failing.got[0], healthy.got[0])

	require.NoError(t, NewDispatcher(Options{}, nil, healthy).Notify(context.Background(), "t", "b"))
}

// TestDispatcher_Notify_CountsWindowDrops records a full window queue as a failed delivery.
func TestDispatcher_Notify_CountsWindowDrops(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := clients.NewHub(nil, clients.Options{Buffer: 1}, m)
	hub.Register("https://example.github.io/planning/")

	d := NewDispatcher(Options{Tag: "schedule-update"}, m, hub)

	require.NoError(t, d.Notify(context.Background(), "Schedule updated", "Week 12 has been updated"))
	require.Error(t, d.Notify(context.Background(), "Schedule updated", "Week 12 has been updated"))

	expected := `
# HELP schedule_watch_notifications_total Notification deliveries by sink and outcome.
# TYPE schedule_watch_notifications_total counter
schedule_watch_notifications_total{outcome="failed",sink="windows"} 1
schedule_watch_notifications_total{outcome="sent",sink="windows"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "schedule_watch_notifications_total"))
}

// TestNATSSink publishes the JSON request.
func TestNATSSink(t *testing.T) {
	t.Parallel()

	_, err := NewNATSSink(new(fakePublisher), "")
	require.ErrorIs(t, err, errSubjectRequired)

	pub := new(fakePublisher)
	sink, err := NewNATSSink(pub, "schedule.updates")
	require.NoError(t, err)

	req := &notification.Request{Title: "New schedule weeks", Body: "New weeks added: 13", Tag: "t", Renotify: true}
	require.NoError(t, sink.Send(context.Background(), req))
	require.Equal(t, "schedule.updates", pub.subject)

	var decoded notification.Request
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	require.Equal(t, *req, decoded)

	pub.err = errSinkDown
	require.ErrorIs(t, sink.Send(context.Background(), req), errSinkDown)
}

// TestDesktopSink delegates to the notify function.
func TestDesktopSink(t *testing.T) {
	t.Parallel()

	var got *notification.Request

	sink := &DesktopSink{notify: func(_ context.Context, req *notification.Request) error {
		got = req

		return nil
	}}

	req := &notification.Request{Title: "x"}
	require.NoError(t, sink.Send(context.Background(), req))
	require.Same(t, req, got)
	require.Equal(t, "desktop", sink.Name())
}
