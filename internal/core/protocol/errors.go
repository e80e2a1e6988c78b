package protocol

import "errors"

var (
	ErrInvalidMessage        = errors.New("invalid message")
	ErrUnknownMessageType    = errors.New("unknown message type")
	ErrMessageTooLarge       = errors.New("message too large")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
	ErrNoHandler             = errors.New("no handler registered for message type")
	ErrAlreadyRegistered     = errors.New("handler already registered")
	ErrUnknownCodec          = errors.New("unknown codec")

	ErrPeerNotFound = errors.New("no peer for connection")
	ErrQueueFull    = errors.New("outbound queue full")
	ErrPeerClosed   = errors.New("peer closed")
)
