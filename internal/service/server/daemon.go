package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/schedule-watch/internal/api/grpc/control"
	"github.com/oshokin/schedule-watch/internal/api/ws"
	"github.com/oshokin/schedule-watch/internal/config"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/metrics"
	"github.com/oshokin/schedule-watch/internal/repository/baseline"
	"github.com/oshokin/schedule-watch/internal/service/checker"
	"github.com/oshokin/schedule-watch/internal/service/clients"
	"github.com/oshokin/schedule-watch/internal/service/desktop"
	"github.com/oshokin/schedule-watch/internal/service/messages"
	"github.com/oshokin/schedule-watch/internal/service/notifier"
	"github.com/oshokin/schedule-watch/internal/service/source"
)

// daemon owns the process-wide checker and everything wired around it.
type daemon struct {
	cfg      *config.Config
	registry *prometheus.Registry
	checker  *checker.Checker
	hub      *clients.Hub
	router   *messages.Router
	health   *health.Server
	closers  []func()
}

// newDaemon builds the checker, its sinks and the message router from cfg
// and restores the persisted baseline.
func newDaemon(ctx context.Context, cfg *config.Config, opener clients.Opener) (*daemon, error) {
	if opener == nil {
		opener = desktop.Opener{}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct // Defaults.
	)

	m := metrics.New(registry)

	src, err := source.NewHTTPSource(cfg.ResourceURL, source.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	target, err := cfg.TargetURL()
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:      cfg,
		registry: registry,
		health:   health.NewServer(),
	}

	d.hub = clients.NewHub(opener, clients.Options{
		Match:  cfg.Notification.WindowMatch,
		Target: target,
	}, m)

	sinks := []notifier.Sink{notifier.LogSink{}, d.hub}

	if cfg.Notification.Desktop {
		sinks = append(sinks, notifier.NewDesktopSink())
	}

	if cfg.NATS.URL != "" {
		conn, err := notifier.ConnectNATS(cfg.NATS.URL, cfg.Timeout)
		if err != nil {
			return nil, err
		}

		d.closers = append(d.closers, conn.Close)

		sink, err := notifier.NewNATSSink(conn, cfg.NATS.Subject)
		if err != nil {
			d.close()

			return nil, err
		}

		sinks = append(sinks, sink)

		logger.InfoKV(ctx, "Publishing notifications to NATS", "subject", cfg.NATS.Subject)
	}

	dispatcher := notifier.NewDispatcher(notifier.Options{
		Icon:  cfg.Notification.Icon,
		Badge: cfg.Notification.Badge,
		Tag:   cfg.Notification.Tag,
		URL:   cfg.Notification.URL,
	}, m, sinks...)

	d.checker = checker.New(src, dispatcher,
		checker.WithRepository(baseline.NewFileRepository(cfg.StateFile)),
		checker.WithMetrics(m),
	)

	if err = d.checker.Restore(ctx); err != nil {
		d.close()

		return nil, err
	}

	d.router = messages.NewRouter(d.checker, d.hub)

	return d, nil
}

// grpcServer registers the control and health services.
func (d *daemon) grpcServer() *grpc.Server {
	s := grpc.NewServer()

	control.Register(s, control.NewServer(d.router, d.checker))
	healthpb.RegisterHealthServer(s, d.health)

	d.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	d.health.SetServingStatus(control.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// httpHandler routes the host channel, metrics and liveness.
func (d *daemon) httpHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Handle("/ws", ws.NewServer(d.hub, d.router, d.cfg.AllowedOrigins))
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})) //nolint:exhaustruct // Defaults.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func (d *daemon) close() {
	for _, fn := range d.closers {
		fn()
	}

	d.closers = nil
}
