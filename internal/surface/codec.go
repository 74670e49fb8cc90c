package surface

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	ws "nhooyr.io/websocket"

	"embedconnect/bridge/internal/bridge"
)

// Codec is the frame encoding of a surface connection. Text frames carry
// JSON, binary frames carry msgpack with the same shape.
type Codec int32

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// ParseCodec maps the codec query parameter; anything unknown is JSON.
func ParseCodec(s string) Codec {
	if s == "msgpack" {
		return CodecMsgpack
	}
	return CodecJSON
}

func (c Codec) messageType() ws.MessageType {
	if c == CodecMsgpack {
		return ws.MessageBinary
	}
	return ws.MessageText
}

func (c Codec) encode(v any) ([]byte, error) {
	if c == CodecMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Frame types written to the surface.
const (
	FrameBoot = "boot"
	FramePush = "push"
)

// Frame is one outbound message. Boot frames carry the boot payload and are
// always first on a connection; push frames carry one bridge.Push.
type Frame struct {
	Type      string              `json:"type" msgpack:"type"`
	URL       string              `json:"url,omitempty" msgpack:"url,omitempty"`
	UserAgent string              `json:"userAgent,omitempty" msgpack:"userAgent,omitempty"`
	Boot      *bridge.BootPayload `json:"boot,omitempty" msgpack:"boot,omitempty"`
	Seq       uint64              `json:"seq,omitempty" msgpack:"seq,omitempty"`
	Entry     string              `json:"entry,omitempty" msgpack:"entry,omitempty"`
	Args      any                 `json:"args,omitempty" msgpack:"args,omitempty"`
	Script    string              `json:"script,omitempty" msgpack:"script,omitempty"`
}

func bootFrame(req bridge.LaunchRequest) Frame {
	boot := req.Boot
	return Frame{Type: FrameBoot, URL: req.URL, UserAgent: req.UserAgent, Boot: &boot}
}

func pushFrame(p bridge.Push) (Frame, error) {
	script, err := p.Script()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FramePush, Seq: p.Seq, Entry: p.Entry, Args: p.Args, Script: script}, nil
}

// decodeInbound turns a frame from the surface into the JSON envelope the
// bridge routes, and reports which codec the surface used.
func decodeInbound(typ ws.MessageType, data []byte) ([]byte, Codec, error) {
	switch typ {
	case ws.MessageText:
		if !json.Valid(data) {
			return nil, CodecJSON, fmt.Errorf("invalid json frame")
		}
		return data, CodecJSON, nil
	case ws.MessageBinary:
		var env map[string]any
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return nil, CodecMsgpack, fmt.Errorf("decode msgpack frame: %w", err)
		}
		out, err := json.Marshal(env)
		if err != nil {
			return nil, CodecMsgpack, fmt.Errorf("re-encode msgpack frame: %w", err)
		}
		return out, CodecMsgpack, nil
	}
	return nil, CodecJSON, fmt.Errorf("unsupported frame type %v", typ)
}
