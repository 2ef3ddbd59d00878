package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/schedule-watch/internal/config"
	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/common"
)

// Action is a schedule-ctl operation.
type Action string

// Supported actions.
const (
	// ActionCheck runs one update check on the daemon.
	ActionCheck Action = "check"
	// ActionInit replaces the daemon baseline with a snapshot file.
	ActionInit Action = "init"
	// ActionClick behaves as if the user clicked the last notification.
	ActionClick Action = "click"
	// ActionStatus reports the daemon health.
	ActionStatus Action = "status"
)

// stdinPath reads the snapshot from standard input.
const stdinPath = "-"

var (
	// errUnknownAction is returned for actions Run does not implement.
	errUnknownAction = errors.New("unknown action")
	// errSnapshotPathRequired is returned when init has no snapshot file.
	errSnapshotPathRequired = errors.New("snapshot file must be provided")
)

// Options configures a single schedule-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file; a missing file falls back to defaults.
	ConfigPath string
	// ControlAddress overrides the daemon address from config when specified.
	ControlAddress string
	// Action selects what to ask the daemon.
	Action Action
	// SnapshotPath is the JSON snapshot for ActionInit, "-" for stdin.
	SnapshotPath string
	// In is read when SnapshotPath is "-".
	In io.Reader
	// Out receives the command result.
	Out io.Writer
}

// Run connects to the daemon, performs the action and prints the result.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "schedule-ctl")

	address, timeout, err := resolveTarget(opts)
	if err != nil {
		return err
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close connection", "error", closeErr)
		}
	}()

	logger.DebugKV(ctx, "Calling schedule-watch", "address", address, "action", opts.Action)

	var snapshot *domain.Snapshot

	switch opts.Action {
	case ActionCheck:
		snapshot, err = client.CheckUpdates(ctx)
	case ActionClick:
		snapshot, err = client.Click(ctx)
	case ActionInit:
		snapshot, err = readSnapshot(opts)
		if err != nil {
			return err
		}

		snapshot, err = client.Init(ctx, snapshot)
	case ActionStatus:
		status, statusErr := client.Status(ctx)
		if statusErr != nil {
			return statusErr
		}

		_, err = fmt.Fprintln(opts.Out, status)

		return err
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}

	if err != nil {
		return err
	}

	return printSnapshot(opts.Out, snapshot)
}

// resolveTarget picks the daemon address and call timeout.
// schedule-ctl does not poll, so the resource URL is not required here.
func resolveTarget(opts *Options) (string, time.Duration, error) {
	cfg, err := config.Read(opts.ConfigPath)

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		cfg = new(config.Config)
	default:
		return "", 0, err
	}

	address := cfg.ControlAddress
	if opts.ControlAddress != "" {
		address = opts.ControlAddress
	}

	if address == "" {
		address = config.DefaultControlAddress
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	return address, timeout, nil
}

func readSnapshot(opts *Options) (*domain.Snapshot, error) {
	var (
		data []byte
		err  error
	)

	switch opts.SnapshotPath {
	case "":
		return nil, errSnapshotPathRequired
	case stdinPath:
		data, err = io.ReadAll(opts.In)
	default:
		data, err = os.ReadFile(filepath.Clean(opts.SnapshotPath))
	}

	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return domain.Decode(data)
}

// printSnapshot writes the baseline as indented JSON, or null when there is none.
func printSnapshot(out io.Writer, snapshot *domain.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}
