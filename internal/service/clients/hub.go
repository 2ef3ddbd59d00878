package clients

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oshokin/schedule-watch/internal/domain/notification"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/metrics"
)

// Outbound message types sent to host windows.
const (
	TypeNotification = "NOTIFICATION"
	TypeFocus        = "FOCUS"
)

// defaultBuffer is the per-window outbound queue length.
const defaultBuffer = 8

var (
	// errNoOpener is returned when a click needs a new window but no opener is set.
	errNoOpener = errors.New("no opener configured")
	// errQueueFull is returned when a broadcast could not be queued for some windows.
	errQueueFull = errors.New("window queue full")
)

// Outbound is a message pushed to a host window.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// FocusData asks a window to focus itself and navigate to URL.
type FocusData struct {
	URL string `json:"url"`
}

// Opener opens a URL in a new browser window.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Window is one connected host window.
type Window struct {
	ID  string
	URL string

	// seq orders windows by registration; later windows win focus.
	seq uint64
	out chan Outbound
}

// Outbound returns the queue of messages for this window.
// It is closed when the window is unregistered.
func (w *Window) Outbound() <-chan Outbound {
	return w.out
}

// Info describes a registered window.
type Info struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Options configures the hub.
type Options struct {
	// Match is the substring a window URL must contain to be focused on click.
	Match string
	// Target is the absolute URL opened when no window matches.
	Target string
	// Buffer is the per-window outbound queue length.
	Buffer int
}

// Hub is the registry of connected host windows.
type Hub struct {
	opts    Options
	opener  Opener
	metrics *metrics.Metrics

	mu      sync.RWMutex
	seq     uint64
	windows map[string]*Window
}

// NewHub creates an empty hub.
func NewHub(opener Opener, opts Options, m *metrics.Metrics) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}

	return &Hub{
		opts:    opts,
		opener:  opener,
		metrics: m,
		windows: make(map[string]*Window),
	}
}

// Register adds a window showing url.
func (h *Hub) Register(url string) *Window {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++

	w := &Window{
		ID:  uuid.NewString(),
		URL: url,
		seq: h.seq,
		out: make(chan Outbound, h.opts.Buffer),
	}

	h.windows[w.ID] = w
	h.metrics.SetWindows(len(h.windows))

	return w
}

// Unregister removes the window and closes its outbound queue.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.windows[id]
	if !ok {
		return
	}

	delete(h.windows, id)
	close(w.out)
	h.metrics.SetWindows(len(h.windows))
}

// Windows lists registered windows, oldest first.
func (h *Hub) Windows() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ordered := make([]*Window, 0, len(h.windows))
	for _, w := range h.windows {
		ordered = append(ordered, w)
	}

	slices.SortFunc(ordered, func(a, b *Window) int {
		return cmp.Compare(a.seq, b.seq)
	})

	result := make([]Info, 0, len(ordered))
	for _, w := range ordered {
		result = append(result, Info{ID: w.ID, URL: w.URL})
	}

	return result
}

// Name implements notifier.Sink.
func (*Hub) Name() string { return "windows" }

// Send implements notifier.Sink by broadcasting req to every window.
// Windows with a full queue miss the notification; Send then reports
// errQueueFull so the drop is counted as a failed delivery.
func (h *Hub) Send(ctx context.Context, req *notification.Request) error {
	msg := Outbound{Type: TypeNotification, Data: req}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0

	for _, w := range h.windows {
		if !offer(w, msg) {
			dropped++

			logger.DebugKV(ctx, "Window queue full, notification dropped", "window_id", w.ID)
		}
	}

	if dropped > 0 {
		return fmt.Errorf("%w: dropped for %d of %d windows", errQueueFull, dropped, len(h.windows))
	}

	return nil
}

// OnNotificationClick focuses the most recent window whose URL contains the
// match substring, or opens a new window at the target URL.
func (h *Hub) OnNotificationClick(ctx context.Context) error {
	if id, ok := h.focus(); ok {
		logger.InfoKV(ctx, "Focusing window", "window_id", id)

		return nil
	}

	if h.opener == nil {
		return errNoOpener
	}

	logger.InfoKV(ctx, "Opening window", "url", h.opts.Target)

	if err := h.opener.Open(ctx, h.opts.Target); err != nil {
		return fmt.Errorf("open %s: %w", h.opts.Target, err)
	}

	return nil
}

// focus queues a FOCUS message for the most recently registered matching window.
// It reports false when no window matches or its queue is full.
func (h *Hub) focus() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var best *Window

	for _, w := range h.windows {
		if !strings.Contains(w.URL, h.opts.Match) {
			continue
		}

		if best == nil || w.seq > best.seq {
			best = w
		}
	}

	if best == nil {
		return "", false
	}

	return best.ID, offer(best, Outbound{Type: TypeFocus, Data: FocusData{URL: h.opts.Target}})
}

// offer queues msg without blocking. Callers hold at least the read lock,
// so the queue cannot be closed underneath.
func offer(w *Window, msg Outbound) bool {
	select {
	case w.out <- msg:
		return true
	default:
		return false
	}
}
