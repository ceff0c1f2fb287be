package hub

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes websocket frames.
type Codec interface {
	Name() string

	// FrameType is the websocket message type frames are written as.
	FrameType() int

	Encode(v interface{}) ([]byte, error)
	DecodeEnvelope(b []byte) (Envelope, error)
	Decode(data []byte, v interface{}) error
}

// Envelope is an inbound frame whose data is decoded on demand once the
// type is known.
type Envelope struct {
	Type string
	Ack  string
	Data []byte
}

type jsonEnvelope struct {
	Type string          `json:"type"`
	Ack  string          `json:"ack"`
	Data json.RawMessage `json:"data"`
}

type msgpackEnvelope struct {
	Type string             `msgpack:"type"`
	Ack  string             `msgpack:"ack"`
	Data msgpack.RawMessage `msgpack:"data"`
}

// JSON is the default codec used by browser clients.
type JSON struct{}

// Msgpack is a binary codec for clients that prefer it.
type Msgpack struct{}

// CodecByName returns a codec by its name. An empty name is JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("unknown codec: %s", name)
}

func (JSON) Name() string   { return "json" }
func (JSON) FrameType() int { return websocket.TextMessage }

func (JSON) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) DecodeEnvelope(b []byte) (Envelope, error) {
	var e jsonEnvelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	// A literal null is the same as no data.
	if string(e.Data) == "null" {
		e.Data = nil
	}
	return Envelope{Type: e.Type, Ack: e.Ack, Data: e.Data}, nil
}

func (JSON) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (Msgpack) Name() string   { return "msgpack" }
func (Msgpack) FrameType() int { return websocket.BinaryMessage }

func (Msgpack) Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack) DecodeEnvelope(b []byte) (Envelope, error) {
	var e msgpackEnvelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	// 0xc0 is nil.
	if len(e.Data) == 1 && e.Data[0] == 0xc0 {
		e.Data = nil
	}
	return Envelope{Type: e.Type, Ack: e.Ack, Data: e.Data}, nil
}

func (Msgpack) Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
