package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// structTypeURL marks an anypb.Any whose value is a zstd-compressed
// structpb.Struct.
const structTypeURL = "type.googleapis.com/bsdash.v1.CompressedStruct"

// Encoder converts messages to and from the wire format of each protocol.
// It is safe for concurrent use.
type Encoder struct {
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc, zstdDecoder: dec}, nil
}

// Encode marshals v and frames it for protocol p. It returns the websocket
// message type to write the frame with.
func (e *Encoder) Encode(p Protocol, v any) (int, []byte, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal json: %w", err)
	}

	switch p {
	case ProtocolZstdJSON:
		return websocket.BinaryMessage, e.zstdEncoder.EncodeAll(js, nil), nil

	case ProtocolProtobuf:
		st := &structpb.Struct{}
		if err := protojson.Unmarshal(js, st); err != nil {
			return 0, nil, fmt.Errorf("convert to struct: %w", err)
		}
		pbData, err := proto.Marshal(st)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal protobuf: %w", err)
		}
		wrapped, err := proto.Marshal(&anypb.Any{
			TypeUrl: structTypeURL,
			Value:   e.zstdEncoder.EncodeAll(pbData, nil),
		})
		if err != nil {
			return 0, nil, fmt.Errorf("marshal any: %w", err)
		}
		return websocket.BinaryMessage, wrapped, nil

	default:
		return websocket.TextMessage, js, nil
	}
}

// Decode unframes a message for protocol p and unmarshals its JSON into v.
// Text frames are always plain JSON.
func (e *Encoder) Decode(p Protocol, msgType int, frame []byte, v any) error {
	js, err := e.unwrap(p, msgType, frame)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(js, v); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

func (e *Encoder) unwrap(p Protocol, msgType int, frame []byte) ([]byte, error) {
	if msgType == websocket.TextMessage {
		return frame, nil
	}

	switch p {
	case ProtocolZstdJSON:
		js, err := e.zstdDecoder.DecodeAll(frame, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress frame: %w", err)
		}
		return js, nil

	case ProtocolProtobuf:
		var wrapped anypb.Any
		if err := proto.Unmarshal(frame, &wrapped); err != nil {
			return nil, fmt.Errorf("unmarshal any: %w", err)
		}
		if wrapped.GetTypeUrl() != structTypeURL {
			return nil, fmt.Errorf("unexpected type url %q", wrapped.GetTypeUrl())
		}
		pbData, err := e.zstdDecoder.DecodeAll(wrapped.GetValue(), nil)
		if err != nil {
			return nil, fmt.Errorf("decompress frame: %w", err)
		}
		st := &structpb.Struct{}
		if err := proto.Unmarshal(pbData, st); err != nil {
			return nil, fmt.Errorf("unmarshal struct: %w", err)
		}
		return protojson.Marshal(st)

	default:
		return nil, errors.New("binary frames are not supported by the json protocol")
	}
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
	if e.zstdDecoder != nil {
		e.zstdDecoder.Close()
	}
}
