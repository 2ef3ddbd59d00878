package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oshokin/schedule-watch/internal/domain/notification"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/desktop"
)

// LogSink writes notifications to the context logger.
type LogSink struct{}

// Name implements Sink.
func (LogSink) Name() string { return "log" }

// Send implements Sink.
func (LogSink) Send(ctx context.Context, req *notification.Request) error {
	logger.InfoKV(ctx, "Notification", "title", req.Title, "body", req.Body, "tag", req.Tag, "url", req.Data.URL)

	return nil
}

// DesktopSink raises OS notifications.
type DesktopSink struct {
	// notify is replaced in tests.
	notify func(ctx context.Context, req *notification.Request) error
}

// NewDesktopSink creates a sink backed by the OS notification service.
func NewDesktopSink() *DesktopSink {
	return &DesktopSink{notify: desktop.Notify}
}

// Name implements Sink.
func (*DesktopSink) Name() string { return "desktop" }

// Send implements Sink.
func (s *DesktopSink) Send(ctx context.Context, req *notification.Request) error {
	return s.notify(ctx, req)
}

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var errSubjectRequired = errors.New("nats subject must be provided")

// NATSSink publishes notifications as JSON on a NATS subject.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink publishing on subject.
func NewNATSSink(pub Publisher, subject string) (*NATSSink, error) {
	if subject == "" {
		return nil, errSubjectRequired
	}

	return &NATSSink{
		pub:     pub,
		subject: subject,
	}, nil
}

// Name implements Sink.
func (*NATSSink) Name() string { return "nats" }

// Send implements Sink.
func (s *NATSSink) Send(_ context.Context, req *notification.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err = s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}

	return nil
}

// ConnectNATS opens a reconnecting NATS connection for the NATS sink.
func ConnectNATS(url string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("schedule-watch"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return nc, nil
}
