package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/schedule-watch/internal/config"
	"github.com/oshokin/schedule-watch/internal/service/server"
	"github.com/oshokin/schedule-watch/internal/version"
)

var (
	// options collects flag values for the daemon.
	options = new(server.Options)

	// rootCmd represents the base command for running the update checker.
	rootCmd = &cobra.Command{
		Use:   "schedule-watch [resource-url]",
		Short: "Watch a published schedule and notify about new or updated weeks.",
		Long: `Polls the published schedule snapshot (JSON) and raises a notification
when new weeks appear or the current week is regenerated.

Host pages connect to /ws and receive notifications there; schedule-ctl
talks to the gRPC control service. The resource URL can be provided as argument
to override the configuration file, in which case the file is optional.
The last seen snapshot is persisted so a restart does not notify twice.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if len(args) > 0 {
				options.ResourceURL = args[0]
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the schedule-watch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.StateFile, "state-file", "s", "", "path to persist the baseline snapshot")
	flags.StringVar(&options.ControlAddress, "control-addr", "", "gRPC control listen address")
	flags.StringVar(&options.HTTPAddress, "http-addr", "", "WebSocket and metrics listen address")
	flags.StringVarP(&options.LogLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	flags.BoolVar(&options.CheckOnStart, "check-on-start", false, "check for updates right after start")

	// Hidden fixed interval replacing the cron schedule, handy for local testing.
	flags.DurationVar(&options.Interval, "interval", time.Duration(0), "check every interval instead of the schedule")

	err := flags.MarkHidden("interval")
	if err != nil {
		panic(err)
	}
}
