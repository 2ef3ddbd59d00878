package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/schedule-watch/internal/domain/notification"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/metrics"
)

// Sink displays or forwards a notification request.
type Sink interface {
	Name() string
	Send(ctx context.Context, req *notification.Request) error
}

// Options holds the fixed presentation shared by every request.
type Options struct {
	Icon  string
	Badge string
	// Tag deduplicates notifications; repeats replace instead of stacking.
	Tag string
	// URL is the click target carried in the payload.
	URL string
}

// Dispatcher turns a title and body into a request and hands it to every sink.
type Dispatcher struct {
	opts    Options
	sinks   []Sink
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher for the given sinks.
func NewDispatcher(opts Options, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		opts:    opts,
		sinks:   sinks,
		metrics: m,
	}
}

// Request builds the notification request for title and body.
func (d *Dispatcher) Request(title, body string) *notification.Request {
	return &notification.Request{
		Title:    title,
		Body:     body,
		Icon:     d.opts.Icon,
		Badge:    d.opts.Badge,
		Tag:      d.opts.Tag,
		Renotify: true,
		Data: notification.Payload{
			URL: d.opts.URL,
		},
	}
}

// Notify sends one request to all sinks. A failing sink does not stop the others;
// the joined error is returned for logging only.
func (d *Dispatcher) Notify(ctx context.Context, title, body string) error {
	req := d.Request(title, body)

	var errs []error

	for _, sink := range d.sinks {
		err := sink.Send(ctx, req)
		d.metrics.ObserveNotification(sink.Name(), err)

		if err != nil {
			logger.WarnKV(ctx, "Notification sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}

	return errors.Join(errs...)
}
