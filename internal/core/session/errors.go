package session

import "errors"

// ErrUnknownConnection is reported when a connection id has no player. It is
// a normal outcome for stale or spoofed ids.
var ErrUnknownConnection = errors.New("connection is not associated with a player")
