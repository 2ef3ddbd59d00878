package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/schedule-watch/internal/logger"
)

// errScheduleExhausted is returned when a schedule has no future activation.
var errScheduleExhausted = errors.New("schedule has no next activation")

// Every is a fixed-interval schedule without cron's one-second rounding.
type Every time.Duration

// Next implements cron.Schedule.
func (e Every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// ParseSchedule returns Every(interval) when interval is positive,
// otherwise parses expr as a standard cron expression or descriptor.
//
//nolint:ireturn // cron.Schedule is the library's abstraction.
func ParseSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	if interval > 0 {
		return Every(interval), nil
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}

	return schedule, nil
}

// Run checks for updates on every schedule activation until ctx is canceled.
// Check failures are logged and otherwise ignored.
func (c *Checker) Run(ctx context.Context, schedule cron.Schedule, checkOnStart bool) error {
	ctx = logger.WithName(ctx, "checker")

	if checkOnStart {
		c.runOnce(ctx)
	}

	for {
		now := time.Now()

		next := schedule.Next(now)
		if next.IsZero() {
			return errScheduleExhausted
		}

		logger.DebugKV(ctx, "Next check scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-timer.C:
			c.runOnce(ctx)
		}
	}
}

// runOnce performs one check and swallows its error.
func (c *Checker) runOnce(ctx context.Context) {
	if _, err := c.CheckForUpdates(ctx); err != nil {
		logger.WarnKV(ctx, "Update check failed", "error", err)
	}
}
