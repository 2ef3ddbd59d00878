package control

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/logger"
	"github.com/oshokin/schedule-watch/internal/service/messages"
)

// Handler processes decoded host messages.
type Handler interface {
	Handle(ctx context.Context, msg *messages.Message) error
}

// BaselineReader exposes the current baseline.
type BaselineReader interface {
	Baseline() *domain.Snapshot
}

// Server implements ControlServer.
type Server struct {
	handler  Handler
	baseline BaselineReader
}

// NewServer wires the message handler and the baseline into a gRPC handler.
func NewServer(handler Handler, baseline BaselineReader) *Server {
	return &Server{
		handler:  handler,
		baseline: baseline,
	}
}

// Post handles one host message and returns the resulting baseline.
func (s *Server) Post(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	msg, actor, err := DecodeMessage(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if actor != "" {
		ctx = logger.WithKV(ctx, "actor", actor)
	}

	logger.InfoKV(ctx, "Control message received", "type", msg.Type)

	if err = s.handler.Handle(ctx, msg); err != nil {
		if errors.Is(err, messages.ErrUnknownType) || errors.Is(err, messages.ErrInvalidData) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}

		logger.ErrorKV(ctx, "Control message failed", "type", msg.Type, "error", err)

		return nil, status.Error(codes.Internal, "unable to handle message")
	}

	resp, err := EncodeSnapshot(s.baseline.Baseline())
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode baseline")
	}

	return resp, nil
}
