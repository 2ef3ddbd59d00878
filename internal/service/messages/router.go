// Package messages routes host messages to the checker and the window hub.
//
// Host pages and the control CLI speak the same envelope: {"type": ..., "data": ...}.
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/checker"
)

// Message types accepted from hosts.
const (
	TypeInit              = "INIT"
	TypeCheckUpdates      = "CHECK_UPDATES"
	TypeNotificationClick = "NOTIFICATION_CLICK"
)

var (
	// ErrUnknownType is returned for message types the router does not handle.
	ErrUnknownType = errors.New("unknown message type")
	// ErrInvalidData is returned when a message payload cannot be decoded.
	ErrInvalidData = errors.New("invalid message data")
)

// Message is the envelope exchanged with host pages.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Checker is the part of checker.Checker the router drives.
type Checker interface {
	Init(ctx context.Context, snapshot *domain.Snapshot) error
	CheckForUpdates(ctx context.Context) (checker.Result, error)
}

// Clicker resolves notification clicks.
type Clicker interface {
	OnNotificationClick(ctx context.Context) error
}

// Router dispatches messages by type.
type Router struct {
	checker Checker
	clicker Clicker
}

// NewRouter creates a router. clicker may be nil when no window hub runs.
func NewRouter(c Checker, clicker Clicker) *Router {
	return &Router{
		checker: c,
		clicker: clicker,
	}
}

// Decode parses a raw envelope.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	return &msg, nil
}

// Handle processes one message. Failed update checks are logged and swallowed.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: empty message", ErrInvalidData)
	}

	ctx = logger.WithKV(ctx, "message_type", msg.Type)

	switch msg.Type {
	case TypeInit:
		snapshot, err := domain.Decode(msg.Data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidData, err)
		}

		return r.checker.Init(ctx, snapshot)
	case TypeCheckUpdates:
		result, err := r.checker.CheckForUpdates(ctx)
		if err != nil {
			logger.WarnKV(ctx, "Update check failed", "error", err)

			return nil
		}

		logger.DebugKV(ctx, "Update check done", "result", result)

		return nil
	case TypeNotificationClick:
		if r.clicker == nil {
			return fmt.Errorf("%w: %s", ErrUnknownType, msg.Type)
		}

		return r.clicker.OnNotificationClick(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}
