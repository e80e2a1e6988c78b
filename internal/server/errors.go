package server

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid server configuration")
	ErrNoListeners     = errors.New("no listener configured")
	ErrListenerFailed  = errors.New("failed to create listener")
	ErrServerNotListen = errors.New("server is not listening")
)
