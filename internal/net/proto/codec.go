package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgPack = "msgpack"
)

// Codec turns envelopes into websocket frames and back.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
	Encode(event string, payload any) ([]byte, error)
	Decode(data []byte) (Inbound, error)
}

// Inbound is a decoded envelope whose payload has not been bound yet.
type Inbound struct {
	Event   string
	payload []byte
	bind    func([]byte, any) error
}

// Bind decodes the payload into dst.
func (m Inbound) Bind(dst any) error {
	if len(m.payload) == 0 || m.bind == nil {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, m.Event)
	}
	if err := m.bind(m.payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, m.Event, err)
	}
	return nil
}

// NewCodec resolves a codec by name. Unknown names fall back to JSON and
// report false.
func NewCodec(name string) (Codec, bool) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, true
	case CodecMsgPack:
		return MsgPackCodec{}, true
	default:
		return JSONCodec{}, false
	}
}

// JSONCodec sends text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Payload: payload})
}

func (JSONCodec) Decode(data []byte) (Inbound, error) {
	var raw struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Event == "" {
		return Inbound{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	payload := []byte(raw.Payload)
	if string(payload) == "null" {
		payload = nil
	}
	return Inbound{Event: raw.Event, payload: payload, bind: json.Unmarshal}, nil
}

// MsgPackCodec sends binary frames with the same field names as JSON.
type MsgPackCodec struct{}

func (MsgPackCodec) Name() string { return CodecMsgPack }
func (MsgPackCodec) Binary() bool { return true }

func (MsgPackCodec) Encode(event string, payload any) ([]byte, error) {
	return msgpack.Marshal(Envelope{Event: event, Payload: payload})
}

func (MsgPackCodec) Decode(data []byte) (Inbound, error) {
	var raw struct {
		Event   string             `msgpack:"event"`
		Payload msgpack.RawMessage `msgpack:"payload"`
	}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Event == "" {
		return Inbound{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	payload := []byte(raw.Payload)
	// 0xc0 is msgpack nil.
	if len(payload) == 1 && payload[0] == 0xc0 {
		payload = nil
	}
	return Inbound{Event: raw.Event, payload: payload, bind: msgpack.Unmarshal}, nil
}
