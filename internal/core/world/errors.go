package world

import "errors"

var (
	ErrInboxFull           = errors.New("world inbox full")
	ErrDuplicateConnection = errors.New("connection already has a player")
	ErrJoinAbandoned       = errors.New("join abandoned by caller")
)
