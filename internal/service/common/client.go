//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/schedule-watch/internal/api/grpc/control"
	"github.com/oshokin/schedule-watch/internal/config"
	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/service/messages"
)

// Client talks to the daemon's control service.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// health is the standard gRPC health client.
	health healthpb.HealthClient

	// actor is sent with every message for audit logging.
	actor string
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the "user@host" reported to the daemon.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errSnapshotRequired is returned when Init is called without a snapshot.
	errSnapshotRequired = errors.New("snapshot must be provided")
)

// Dial creates a client for the control service at address.
// The daemon listens on loopback by default, so the transport is plaintext.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	return DialWith(address, nil, opts...)
}

// DialWith is Dial with extra gRPC dial options, used by tests with in-memory listeners.
func DialWith(address string, dialOpts []grpc.DialOption, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	dialOpts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOpts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial schedule-watch: %w", err)
	}

	client := &Client{
		conn:        conn,
		health:      healthpb.NewHealthClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Post sends one host message and returns the daemon's baseline afterwards.
func (c *Client) Post(ctx context.Context, msg *messages.Message) (*domain.Snapshot, error) {
	req, err := control.EncodeMessage(msg, c.actor)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp := new(structpb.Struct)
	if err = c.conn.Invoke(callCtx, control.PostMethod, req, resp); err != nil {
		return nil, fmt.Errorf("post %s: %w", msg.Type, err)
	}

	return control.DecodeSnapshot(resp)
}

// CheckUpdates asks the daemon to run one update check.
func (c *Client) CheckUpdates(ctx context.Context) (*domain.Snapshot, error) {
	return c.Post(ctx, &messages.Message{Type: messages.TypeCheckUpdates})
}

// Init replaces the daemon's baseline without notifying.
func (c *Client) Init(ctx context.Context, snapshot *domain.Snapshot) (*domain.Snapshot, error) {
	if snapshot == nil {
		return nil, errSnapshotRequired
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return c.Post(ctx, &messages.Message{Type: messages.TypeInit, Data: data})
}

// Click simulates a click on the last notification.
func (c *Client) Click(ctx context.Context) (*domain.Snapshot, error) {
	return c.Post(ctx, &messages.Message{Type: messages.TypeNotificationClick})
}

// Status returns the serving status reported by the gRPC health service.
func (c *Client) Status(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: control.ServiceName})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}

	return resp.GetStatus().String(), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
