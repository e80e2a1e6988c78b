package bus

import "errors"

var (
	ErrNilHandler     = errors.New("bus: handler is nil")
	ErrEmptyEventType = errors.New("bus: event type is empty")
)
