package control

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/service/messages"
)

// actorField carries "user@host" of the CLI caller for audit logging.
const actorField = "actor"

// EncodeMessage converts a host message into the Post request payload.
func EncodeMessage(msg *messages.Message, actor string) (*structpb.Struct, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req := new(structpb.Struct)
	if err = protojson.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("convert message: %w", err)
	}

	if actor != "" {
		req.Fields[actorField] = structpb.NewStringValue(actor)
	}

	return req, nil
}

// DecodeMessage converts a Post request payload into a host message and its actor.
func DecodeMessage(req *structpb.Struct) (*messages.Message, string, error) {
	raw, err := protojson.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	msg, err := messages.Decode(raw)
	if err != nil {
		return nil, "", err
	}

	return msg, req.GetFields()[actorField].GetStringValue(), nil
}

// EncodeSnapshot converts a snapshot into the Post response payload.
// A nil snapshot becomes an empty struct.
func EncodeSnapshot(snapshot *domain.Snapshot) (*structpb.Struct, error) {
	resp := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if snapshot == nil {
		return resp, nil
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	if err = protojson.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("convert snapshot: %w", err)
	}

	return resp, nil
}

// DecodeSnapshot converts a Post response payload into a snapshot.
// An empty struct means no baseline and yields nil.
func DecodeSnapshot(resp *structpb.Struct) (*domain.Snapshot, error) {
	if len(resp.GetFields()) == 0 {
		return nil, nil //nolint:nilnil // No baseline is a valid answer.
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	return domain.Decode(raw)
}
