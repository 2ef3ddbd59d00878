package integration

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/schedule-watch/internal/config"
	"github.com/oshokin/schedule-watch/internal/domain/notification"
	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/repository/baseline"
	"github.com/oshokin/schedule-watch/internal/service/checker"
	"github.com/oshokin/schedule-watch/internal/service/clients"
	"github.com/oshokin/schedule-watch/internal/service/common"
	"github.com/oshokin/schedule-watch/internal/service/messages"
	"github.com/oshokin/schedule-watch/internal/service/server"
)

const waitFor = 5 * time.Second

// publisher serves a replaceable snapshot document.
type publisher struct {
	body atomic.Pointer[string]
}

func (p *publisher) publish(doc string) {
	p.body.Store(&doc)
}

func (p *publisher) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, *p.body.Load())
}

// recordingOpener records URLs the daemon tried to open.
type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (r *recordingOpener) Open(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = append(r.opened, target)

	return nil
}

func (r *recordingOpener) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.opened...)
}

// env is a running daemon with its collaborators.
type env struct {
	site      string
	httpAddr  string
	stateFile string
	pub       *publisher
	opener    *recordingOpener
	client    *common.Client
}

// freeAddress reserves a loopback port and releases it for the daemon.
func freeAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// startDaemon publishes doc, starts schedule-watch against it and waits until it serves.
func startDaemon(t *testing.T, doc string) *env {
	t.Helper()

	pub := new(publisher)
	pub.publish(doc)

	mux := http.NewServeMux()
	mux.Handle("/planning/latest.json", pub)

	resource := httptest.NewServer(mux)
	t.Cleanup(resource.Close)

	dir := t.TempDir()
	e := &env{
		site:      resource.URL + "/planning/",
		httpAddr:  freeAddress(t),
		stateFile: filepath.Join(dir, "baseline.json"),
		pub:       pub,
		opener:    new(recordingOpener),
	}

	cfgPath := filepath.Join(dir, "schedule-watch.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ResourceURL:    resource.URL + "/planning/latest.json",
		Schedule:       "@every 1h",
		Timeout:        3 * time.Second,
		StateFile:      e.stateFile,
		ControlAddress: freeAddress(t),
		HTTPAddress:    e.httpAddr,
	}))

	settings, err := config.Load(cfgPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath, Opener: e.opener})
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("daemon did not stop")
		}
	})

	e.client, err = common.Dial(ctx, settings.ControlAddress,
		common.WithActor("tester@localhost"),
		common.WithCallTimeout(3*time.Second),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.client.Close() })

	require.Eventually(t, func() bool {
		st, err := e.client.Status(ctx)

		return err == nil && st == healthpb.HealthCheckResponse_SERVING.String()
	}, waitFor, 20*time.Millisecond)

	return e
}

// connectWindow opens a host window on page and waits until the daemon has registered it.
func (e *env) connectWindow(t *testing.T, page string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+e.httpAddr+"/ws?url="+url.QueryEscape(page), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.CloseNow() })

	require.Eventually(t, func() bool {
		return e.windowsGauge(t) == "1"
	}, waitFor, 20*time.Millisecond)

	return conn
}

func (e *env) windowsGauge(t *testing.T) string {
	t.Helper()

	resp, err := http.Get("http://" + e.httpAddr + "/metrics") //nolint:noctx // Test helper.
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for line := range strings.Lines(string(data)) {
		if value, ok := strings.CutPrefix(line, "schedule_watch_windows_connected "); ok {
			return strings.TrimSpace(value)
		}
	}

	return ""
}

// TestDaemon_NotifiesWindows drives INIT, a regenerated snapshot and a click end to end.
func TestDaemon_NotifiesWindows(t *testing.T) {
	t.Parallel()

	e := startDaemon(t, `{"generatedAt":"2025-03-07T18:00:00Z","weeks":[10,11]}`)
	ctx := context.Background()

	page := e.connectWindow(t, e.site+"S11.html")

	snapshot, err := e.client.Init(ctx, &domain.Snapshot{
		GeneratedAt: "2025-03-07T18:00:00Z",
		Weeks:       []domain.Week{"10", "11"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.Week("11"), snapshot.LatestWeek)

	// Same generation: nothing to report.
	_, err = e.client.CheckUpdates(ctx)
	require.NoError(t, err)

	e.pub.publish(`{"generatedAt":"2025-03-08T06:00:00Z","weeks":[10,11,12],"latestWeek":12}`)

	snapshot, err = e.client.CheckUpdates(ctx)
	require.NoError(t, err)
	require.Equal(t, "2025-03-08T06:00:00Z", snapshot.GeneratedAt)

	readCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()

	var pushed struct {
		Type string               `json:"type"`
		Data notification.Request `json:"data"`
	}

	require.NoError(t, wsjson.Read(readCtx, page, &pushed))
	require.Equal(t, clients.TypeNotification, pushed.Type)
	require.Equal(t, checker.TitleNewWeeks, pushed.Data.Title)
	require.Equal(t, "New weeks added: 12", pushed.Data.Body)
	require.Equal(t, config.DefaultNotificationTag, pushed.Data.Tag)
	require.True(t, pushed.Data.Renotify)
	require.Equal(t, config.DefaultNotificationURL, pushed.Data.Data.URL)

	// The page reports a click; the daemon asks that same page to focus.
	require.NoError(t, wsjson.Write(readCtx, page, messages.Message{Type: messages.TypeNotificationClick}))

	var focus struct {
		Type string            `json:"type"`
		Data clients.FocusData `json:"data"`
	}

	require.NoError(t, wsjson.Read(readCtx, page, &focus))
	require.Equal(t, clients.TypeFocus, focus.Type)
	require.Equal(t, e.site, focus.Data.URL)
	require.Empty(t, e.opener.urls())

	// Once the page is gone, a click opens a new window instead.
	require.NoError(t, page.Close(websocket.StatusGoingAway, "closed"))
	require.Eventually(t, func() bool { return e.windowsGauge(t) == "0" }, waitFor, 20*time.Millisecond)

	_, err = e.client.Click(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{e.site}, e.opener.urls())

	stored, err := baseline.NewFileRepository(e.stateFile).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, snapshot, stored)
}

// TestDaemon_MalformedResourceKeepsBaseline checks a broken publication is ignored.
func TestDaemon_MalformedResourceKeepsBaseline(t *testing.T) {
	t.Parallel()

	e := startDaemon(t, `{"generatedAt":"A","weeks":[1,2]}`)
	ctx := context.Background()

	adopted, err := e.client.CheckUpdates(ctx)
	require.NoError(t, err)
	require.Equal(t, "A", adopted.GeneratedAt)

	e.pub.publish(`{"generatedAt":`)

	current, err := e.client.CheckUpdates(ctx)
	require.NoError(t, err)
	require.Equal(t, adopted, current)

	// The host channel still serves pages started after the failure.
	e.connectWindow(t, e.site)
}
