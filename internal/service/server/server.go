package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/schedule-watch/internal/config"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/checker"
	"github.com/oshokin/schedule-watch/internal/service/clients"
)

// Options controls the schedule-watch process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ResourceURL overrides the polled resource. With it, a missing config file is allowed.
	ResourceURL string
	// StateFile overrides where the baseline is persisted.
	StateFile string
	// ControlAddress overrides the gRPC listen address.
	ControlAddress string
	// HTTPAddress overrides the HTTP listen address.
	HTTPAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Interval replaces the cron schedule with a fixed interval when positive.
	Interval time.Duration
	// CheckOnStart forces one check right after start-up.
	CheckOnStart bool
	// Opener opens browser windows on notification clicks. Defaults to the OS opener.
	Opener clients.Opener
}

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Run starts the checker loop, the control service and the HTTP endpoints,
// and blocks until ctx is canceled or one of them fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "schedule-watch")

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if err = logger.Configure(settings.LogLevel); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	schedule, err := checker.ParseSchedule(settings.Schedule, opts.Interval)
	if err != nil {
		return err
	}

	d, err := newDaemon(ctx, settings, opts.Opener)
	if err != nil {
		return fmt.Errorf("initialise daemon: %w", err)
	}

	defer d.close()

	lc := net.ListenConfig{}

	grpcLis, err := lc.Listen(ctx, "tcp", settings.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ControlAddress, err)
	}

	httpLis, err := lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		grpcLis.Close() //nolint:errcheck,gosec // Already failing.

		return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	logger.InfoKV(ctx, "Schedule watch started",
		"resource_url", settings.ResourceURL,
		"schedule", scheduleName(settings.Schedule, opts.Interval),
		"control_address", grpcLis.Addr().String(),
		"http_address", httpLis.Addr().String(),
		"state_file", settings.StateFile,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	grpcServer := d.grpcServer()
	httpServer := &http.Server{
		Handler:           d.httpHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
		// WebSocket connections are hijacked and ignore Shutdown, so they follow the group context.
		BaseContext: func(net.Listener) context.Context { return groupCtx },
	}

	group.Go(func() error {
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		return d.checker.Run(groupCtx, schedule, settings.CheckOnStart)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down")

		d.health.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Schedule watch stopped")

	return err
}

// loadSettings reads the config file and applies command-line overrides before validation.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Read(opts.ConfigPath)

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && opts.ResourceURL != "":
		settings = new(config.Config)
	default:
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ResourceURL != "" {
		settings.ResourceURL = opts.ResourceURL
	}

	overrideString(&settings.StateFile, opts.StateFile)
	overrideString(&settings.ControlAddress, opts.ControlAddress)
	overrideString(&settings.HTTPAddress, opts.HTTPAddress)
	overrideString(&settings.LogLevel, opts.LogLevel)

	if opts.CheckOnStart {
		settings.CheckOnStart = true
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func scheduleName(expr string, interval time.Duration) string {
	if interval > 0 {
		return "every " + interval.String()
	}

	return expr
}
