package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// Protocol is a negotiated WebSocket subprotocol.
type Protocol string

const (
	// ProtocolJSON carries plain JSON in text frames.
	ProtocolJSON Protocol = "json.bsdash.v1"
	// ProtocolZstdJSON carries zstd-compressed JSON in binary frames.
	ProtocolZstdJSON Protocol = "zstd.json.bsdash.v1"
	// ProtocolProtobuf carries an anypb.Any whose value is a
	// zstd-compressed structpb.Struct, in binary frames.
	ProtocolProtobuf Protocol = "protobuf.bsdash.v1"
)

// Subprotocols lists the supported subprotocols in preference order.
var Subprotocols = []string{
	string(ProtocolProtobuf),
	string(ProtocolZstdJSON),
	string(ProtocolJSON),
}

// Message types
const (
	TypeCompute   = "compute"
	TypePing      = "ping"
	TypeConnected = "connected"
	TypeSnapshot  = "snapshot"
	TypeError     = "error"
	TypePong      = "pong"
)

// Upstream is a message sent by the client.
type Upstream struct {
	Type    string                    `json:"type"`
	ID      uint64                    `json:"id,omitempty"`
	Request *request.DashboardRequest `json:"request,omitempty"`
}

// Downstream is a message sent to the client.
type Downstream struct {
	Type         string               `json:"type"`
	ID           uint64               `json:"id,omitempty"`
	ConnectionID string               `json:"connection_id,omitempty"`
	Snapshot     *dashboard.Snapshot  `json:"snapshot,omitempty"`
	Error        string               `json:"error,omitempty"`
	Details      []request.FieldError `json:"details,omitempty"`
}

func parseUpstream(data []byte) (*Upstream, error) {
	var msg Upstream
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}

	switch msg.Type {
	case TypePing:
		return &msg, nil
	case TypeCompute:
		if msg.Request == nil {
			return nil, fmt.Errorf("compute message %d has no request", msg.ID)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", msg.Type)
	}
}

func connectedMessage(connID string) *Downstream {
	return &Downstream{Type: TypeConnected, ConnectionID: connID}
}

func pongMessage() *Downstream {
	return &Downstream{Type: TypePong}
}

func snapshotMessage(id uint64, snap *dashboard.Snapshot) *Downstream {
	return &Downstream{Type: TypeSnapshot, ID: id, Snapshot: snap}
}

func errorMessage(id uint64, err error) *Downstream {
	msg := &Downstream{Type: TypeError, ID: id, Error: err.Error()}
	var verrs *request.ValidationErrors
	if errors.As(err, &verrs) {
		msg.Error = "validation failed"
		msg.Details = verrs.Fields
	}
	return msg
}
