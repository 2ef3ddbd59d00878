// Package ws serves the WebSocket channel between host pages and the daemon.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/clients"
	"github.com/oshokin/schedule-watch/internal/service/messages"
)

// URLParam is the query parameter a host uses to introduce its page URL.
const URLParam = "url"

const (
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

// Registry tracks connected windows.
type Registry interface {
	Register(url string) *clients.Window
	Unregister(id string)
}

// Handler processes decoded host messages.
type Handler interface {
	Handle(ctx context.Context, msg *messages.Message) error
}

// Server upgrades host connections and pumps messages both ways.
type Server struct {
	registry Registry
	handler  Handler
	origins  []string
}

// NewServer creates a WebSocket endpoint. origins are host patterns
// accepted in the Origin header; same-host requests are always allowed.
func NewServer(registry Registry, handler Handler, origins []string) *Server {
	return &Server{
		registry: registry,
		handler:  handler,
		origins:  origins,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	//nolint:exhaustruct // Remaining accept options keep their defaults.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		logger.WarnKV(r.Context(), "WebSocket upgrade rejected", "error", err)

		return
	}

	defer conn.CloseNow() //nolint:errcheck // Closing an already closed connection is fine.

	conn.SetReadLimit(readLimit)

	window := s.registry.Register(r.URL.Query().Get(URLParam))
	defer s.registry.Unregister(window.ID)

	ctx, cancel := context.WithCancel(logger.WithKV(r.Context(), "window_id", window.ID))
	defer cancel()

	logger.InfoKV(ctx, "Window connected", "url", window.URL)

	go s.writeLoop(ctx, cancel, conn, window)

	err = s.readLoop(ctx, conn)

	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		logger.InfoKV(ctx, "Window disconnected")
		conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck,gosec // Best effort close.
	default:
		logger.WarnKV(ctx, "Window connection failed", "error", err)
	}
}

// readLoop handles incoming messages until the connection fails.
// Bad messages are logged and skipped.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if typ != websocket.MessageText {
			logger.WarnKV(ctx, "Ignoring binary message")

			continue
		}

		msg, err := messages.Decode(data)
		if err != nil {
			logger.WarnKV(ctx, "Ignoring malformed message", "error", err)

			continue
		}

		if err = s.handler.Handle(ctx, msg); err != nil {
			logger.WarnKV(ctx, "Message rejected", "type", msg.Type, "error", err)
		}
	}
}

// writeLoop drains the window queue into the connection.
func (s *Server) writeLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	window *clients.Window,
) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-window.Outbound():
			if !ok {
				return
			}

			writeCtx, stop := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, msg)

			stop()

			if err != nil {
				logger.WarnKV(ctx, "Unable to write to window", "type", msg.Type, "error", err)

				return
			}
		}
	}
}
