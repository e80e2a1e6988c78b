package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/cellsync/internal/core/protocol"
)

var _ protocol.Peer = (*Connection)(nil)

// Connection is one upgraded websocket. Reads happen on the handler
// goroutine; every write goes through the outbound queue and writeLoop.
type Connection struct {
	id     string
	conn   *websocket.Conn
	config Config
	queue  *protocol.Queue
	binary bool

	connectedAt  time.Time
	lastActivity atomic.Int64

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, config Config, binary bool) *Connection {
	now := time.Now()
	c := &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		config:      config,
		queue:       protocol.NewQueue(config.QueueSize),
		binary:      binary,
		connectedAt: now,
	}
	c.lastActivity.Store(now.Unix())
	return c
}

// ID is the transport session id used in logs.
func (c *Connection) ID() string { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Enqueue implements protocol.Peer.
func (c *Connection) Enqueue(frame []byte) error {
	return c.queue.Enqueue(frame)
}

// receive reads the next data frame.
func (c *Connection) receive() ([]byte, error) {
	if c.config.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
		return nil, errors.New("unsupported message type")
	}
	c.bytesReceived.Add(uint64(len(data)))
	c.lastActivity.Store(time.Now().Unix())
	return data, nil
}

// writeLoop drains the queue and sends pings until the queue is closed or a
// write fails.
func (c *Connection) writeLoop() error {
	var ping <-chan time.Time
	if c.config.PingInterval > 0 {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	frameType := websocket.TextMessage
	if c.binary {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case <-c.queue.Done():
			return nil
		case frame := <-c.queue.Frames():
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(frameType, frame); err != nil {
				return errors.Wrap(err, "failed to write message")
			}
			c.bytesSent.Add(uint64(len(frame)))
			c.lastActivity.Store(time.Now().Unix())
		case <-ping:
			deadline := time.Now().Add(time.Second)
			if c.config.WriteTimeout > 0 {
				deadline = time.Now().Add(c.config.WriteTimeout)
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return errors.Wrap(err, "failed to send ping")
			}
		}
	}
}

func (c *Connection) setWriteDeadline() {
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
}

// Close stops the writer and closes the socket with a close frame.
func (c *Connection) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.queue.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// ConnectionStats describes one connection for diagnostics.
type ConnectionStats struct {
	ID            string    `json:"id"`
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastActivity  time.Time `json:"last_activity"`
	BytesSent     uint64    `json:"bytes_sent"`
	BytesReceived uint64    `json:"bytes_received"`
}

func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		ID:            c.id,
		RemoteAddr:    c.RemoteAddr().String(),
		ConnectedAt:   c.connectedAt,
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesReceived.Load(),
	}
}
