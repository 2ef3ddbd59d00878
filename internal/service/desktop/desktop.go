package desktop

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/pkg/browser"

	"github.com/oshokin/schedule-watch/internal/domain/notification"
)

var (
	// errEmptyURL is returned when asked to open nothing.
	errEmptyURL = errors.New("url must be provided")
	// errEmptyNotification is returned for a request without a title.
	errEmptyNotification = errors.New("notification title must be provided")
)

// backend binds the desktop calls; tests swap in fakes.
type backend struct {
	notify func(title, message, icon string) error
	open   func(url string) error
}

//nolint:gochecknoglobals // The OS desktop is process-wide.
var system = backend{
	notify: func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	},
	open: browser.OpenURL,
}

// Notify shows req as a desktop notification (D-Bus on Linux,
// Notification Center on macOS, toast on Windows).
// The icon is a local path; an empty icon uses the platform default.
func Notify(ctx context.Context, req *notification.Request) error {
	return system.send(ctx, req)
}

// OpenURL opens target in the default browser.
func OpenURL(ctx context.Context, target string) error {
	return system.openURL(ctx, target)
}

// Opener opens URLs with the OS default browser.
type Opener struct{}

// Open implements the window hub's opener.
func (Opener) Open(ctx context.Context, target string) error {
	return OpenURL(ctx, target)
}

func (b backend) send(ctx context.Context, req *notification.Request) error {
	if req == nil || req.Title == "" {
		return errEmptyNotification
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.notify(req.Title, req.Body, req.Icon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}

	return nil
}

func (b backend) openURL(ctx context.Context, target string) error {
	if target == "" {
		return errEmptyURL
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.open(target); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}

	return nil
}
