package protocol

import (
	"fmt"
	"sync"

	"github.com/zeusync/cellsync/internal/core/models"
)

// HandlerFunc processes one command. Handlers are total: they report
// problems through logging, not return values.
type HandlerFunc func(conn models.ConnectionID, msg Message)

// Dispatcher routes commands to the handler registered for their type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a message type tag.
func (d *Dispatcher) Register(messageType string, handler HandlerFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[messageType]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, messageType)
	}
	d.handlers[messageType] = handler
	return nil
}

// Handle registers a typed handler. M is the pointer message type, e.g.
// *ShiftGridCellRequest.
func Handle[M Message](d *Dispatcher, handler func(conn models.ConnectionID, msg M)) error {
	var zero M
	return d.Register(zero.Type(), func(conn models.ConnectionID, msg Message) {
		if typed, ok := msg.(M); ok {
			handler(conn, typed)
		}
	})
}

// Dispatch runs the handler for cmd synchronously.
func (d *Dispatcher) Dispatch(cmd Command) error {
	d.mu.RLock()
	handler, ok := d.handlers[cmd.Message.Type()]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.Message.Type())
	}
	handler(cmd.Connection, cmd.Message)
	return nil
}
