package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/schedule-watch/internal/config"
	client "github.com/oshokin/schedule-watch/internal/service/client"
	"github.com/oshokin/schedule-watch/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// controlAddress overrides the daemon address.
	controlAddress string

	// rootCmd represents the base command for controlling the daemon.
	rootCmd = &cobra.Command{
		Use:   "schedule-ctl",
		Short: "Control a running schedule-watch daemon.",
		Long: `Sends messages to schedule-watch over its gRPC control service.

The daemon address is read from the configuration file (control_addr) unless
--addr is given. Commands that change or query the baseline print it as JSON.`,
		Args: cobra.NoArgs,
	}
)

// Execute runs the schedule-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// actionCommand builds a subcommand running one client action.
func actionCommand(use, short string, action client.Action, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &client.Options{
				ConfigPath:     cfgPath,
				ControlAddress: controlAddress,
				Action:         action,
				In:             cmd.InOrStdin(),
				Out:            cmd.OutOrStdout(),
			}

			if len(args) > 0 {
				options.SnapshotPath = args[0]
			}

			return client.Run(ctx, options)
		},
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&controlAddress, "addr", "a", "", "schedule-watch control address")

	rootCmd.AddCommand(
		actionCommand("check", "Run one update check now.", client.ActionCheck, cobra.NoArgs),
		actionCommand("init <snapshot.json|->", "Replace the baseline without notifying.", client.ActionInit, cobra.ExactArgs(1)),
		actionCommand("click", "Act as if the last notification was clicked.", client.ActionClick, cobra.NoArgs),
		actionCommand("status", "Print the daemon health status.", client.ActionStatus, cobra.NoArgs),
	)
}
