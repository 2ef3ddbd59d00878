package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/metrics"
	repo "github.com/oshokin/schedule-watch/internal/repository/baseline"
)

// Source fetches the current published snapshot.
type Source interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}

// Notifier raises a notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Result tells what a successful check found.
type Result string

// Check results.
const (
	// Unchanged means the generation stamp matched the baseline.
	Unchanged Result = metrics.ResultUnchanged
	// NewWeeks means weeks absent from the baseline were published.
	NewWeeks Result = metrics.ResultNewWeeks
	// Updated means the snapshot was regenerated without new weeks.
	Updated Result = metrics.ResultUpdated
	// Baseline means there was no baseline yet; the snapshot was adopted silently.
	Baseline Result = metrics.ResultBaseline
)

// Notification texts.
const (
	TitleNewWeeks = "New schedule weeks"
	TitleUpdated  = "Schedule updated"
)

// errNilSnapshot is returned by Init for a nil snapshot.
var errNilSnapshot = errors.New("snapshot is nil")

// Checker holds the baseline and runs checks against the source.
type Checker struct {
	source   Source
	notifier Notifier
	repo     repo.Repository
	metrics  *metrics.Metrics

	// mu guards baseline and seq; fetches and notifications happen outside it.
	mu       sync.Mutex
	baseline *domain.Snapshot
	// seq numbers baseline swaps so saves can be ordered.
	seq uint64

	// saveMu serializes saves; saved is the seq of the newest snapshot written.
	saveMu sync.Mutex
	saved  uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithRepository persists the baseline on every change.
func WithRepository(r repo.Repository) Option {
	return func(c *Checker) {
		c.repo = r
	}
}

// WithMetrics records check results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// New creates a checker without a baseline.
func New(source Source, notifier Notifier, opts ...Option) *Checker {
	c := &Checker{
		source:   source,
		notifier: notifier,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Restore loads the persisted baseline, if any. A missing file is not an error.
func (c *Checker) Restore(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	snapshot, err := c.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("load baseline: %w", err)
	}

	seq := c.swap(snapshot)

	// Already on disk.
	c.saveMu.Lock()
	c.saved = seq
	c.saveMu.Unlock()

	logger.InfoKV(ctx, "Baseline restored", "generated_at", snapshot.GeneratedAt, "latest_week", snapshot.LatestWeek)

	return nil
}

// Init stores snapshot as the baseline without notifying.
func (c *Checker) Init(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return errNilSnapshot
	}

	snapshot = snapshot.Clone()

	seq := c.swap(snapshot)

	logger.InfoKV(ctx, "Baseline initialized", "generated_at", snapshot.GeneratedAt, "weeks", len(snapshot.Weeks))
	c.persist(ctx, snapshot, seq)

	return nil
}

// Baseline returns a copy of the current baseline, or nil when none is set.
func (c *Checker) Baseline() *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.baseline.Clone()
}

// CheckForUpdates runs one check cycle.
// On failure the baseline is untouched, nothing is notified and the error is returned.
// On success the fetched snapshot always becomes the new baseline.
func (c *Checker) CheckForUpdates(ctx context.Context) (Result, error) {
	current, err := c.source.Fetch(ctx)
	if err != nil {
		c.metrics.ObserveCheck(metrics.ResultFailed)

		return "", fmt.Errorf("fetch snapshot: %w", err)
	}

	c.mu.Lock()
	previous := c.baseline
	c.baseline = current
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	result, title, body := compare(previous, current)
	c.metrics.ObserveCheck(string(result))

	logger.DebugKV(ctx, "Snapshot checked", "result", result, "generated_at", current.GeneratedAt)

	if result == Unchanged {
		return result, nil
	}

	c.persist(ctx, current, seq)

	if title == "" {
		return result, nil
	}

	logger.InfoKV(ctx, "Schedule changed", "result", result, "body", body)

	if err = c.notifier.Notify(ctx, title, body); err != nil {
		logger.WarnKV(ctx, "Notification incomplete", "error", err)
	}

	return result, nil
}

// compare decides the check result and the notification to raise, if any.
func compare(previous, current *domain.Snapshot) (Result, string, string) {
	if previous == nil {
		return Baseline, "", ""
	}

	if previous.SameGeneration(current) {
		return Unchanged, "", ""
	}

	if added := domain.NewWeeks(previous, current); len(added) > 0 {
		return NewWeeks, TitleNewWeeks, "New weeks added: " + domain.JoinWeeks(added)
	}

	return Updated, TitleUpdated, fmt.Sprintf("Week %s has been updated", current.LatestWeek)
}

// swap replaces the baseline and returns its sequence number.
func (c *Checker) swap(snapshot *domain.Snapshot) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseline = snapshot
	c.seq++

	return c.seq
}

// persist saves the baseline swapped in as seq. A save that lost the race to a
// newer swap is skipped so the file never goes back in time.
// Failures are logged because the in-memory baseline stays authoritative.
func (c *Checker) persist(ctx context.Context, snapshot *domain.Snapshot, seq uint64) {
	if c.repo == nil {
		return
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if seq <= c.saved {
		logger.DebugKV(ctx, "Skipping stale baseline save", "generated_at", snapshot.GeneratedAt)

		return
	}

	c.saved = seq

	if err := c.repo.Save(ctx, snapshot); err != nil {
		logger.WarnKV(ctx, "Failed to persist baseline", "error", err)
	}
}
