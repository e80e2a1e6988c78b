package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns messages into frames and back. Decode resolves the concrete
// type from the envelope tag but does not validate.
type Codec interface {
	Name() string
	// Binary reports whether frames are binary (as opposed to text).
	Binary() bool
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

const (
	CodecMsgpack = "msgpack"
	CodecJSON    = "json"
)

// CodecByName returns the codec configured by name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecMsgpack:
		return MsgpackCodec{}, nil
	case CodecJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// MsgpackCodec is the default binary codec.
type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

func (MsgpackCodec) Name() string { return CodecMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(msg Message) ([]byte, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerializationFailed, msg.Type(), err)
	}
	out, err := msgpack.Marshal(&msgpackEnvelope{Type: msg.Type(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrSerializationFailed, err)
	}
	return out, nil
}

func (MsgpackCodec) Decode(data []byte) (Message, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrDeserializationFailed, err)
	}
	msg, ok := newMessage(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	if len(env.Payload) > 0 {
		if err := msgpack.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeserializationFailed, env.Type, err)
		}
	}
	return msg, nil
}

// JSONCodec is human readable and is used for text frames and debugging.
type JSONCodec struct{}

type jsonEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (JSONCodec) Name() string { return CodecJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerializationFailed, msg.Type(), err)
	}
	out, err := json.Marshal(jsonEnvelope{Type: msg.Type(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrSerializationFailed, err)
	}
	return out, nil
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrDeserializationFailed, err)
	}
	msg, ok := newMessage(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeserializationFailed, env.Type, err)
		}
	}
	return msg, nil
}
