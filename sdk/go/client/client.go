// Package client is a websocket client for the cellsync server. It encodes
// requests with the same codecs as the server and delivers every decoded
// server message on a channel.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

// Config holds configuration for the client
type Config struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL  string
	Name string
	// Codec must match the server's protocol.codec.
	Codec string

	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	MessageBufferSize int
	MaxMessageSize    int64

	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:               "ws://localhost:8080/ws",
		Codec:             protocol.CodecMsgpack,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MessageBufferSize: 256,
		MaxMessageSize:    64 * 1024,
		LogLevel:          log.LevelInfo,
	}
}

// Client is one player connection.
type Client struct {
	conn   *websocket.Conn
	codec  protocol.Codec
	config Config
	logger log.Log

	writeMu  sync.Mutex
	messages chan protocol.Message
	done     chan struct{}
	closed   atomic.Bool
	readErr  atomic.Value
}

// Dial connects to the server and starts the read loop.
func Dial(ctx context.Context, config Config) (*Client, error) {
	codec, err := protocol.CodecByName(config.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if config.Name != "" {
		q := u.Query()
		q.Set("name", config.Name)
		u.RawQuery = q.Encode()
	}
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = 256
	}

	dialer := websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial")
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}

	c := &Client{
		conn:     conn,
		codec:    codec,
		config:   config,
		logger:   log.New(config.LogLevel).With(log.String("component", "client"), log.String("name", config.Name)),
		messages: make(chan protocol.Message, config.MessageBufferSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	c.logger.Info("Connected to server", log.String("url", config.URL))
	return c, nil
}

// Messages delivers decoded server messages. It is closed when the
// connection ends.
func (c *Client) Messages() <-chan protocol.Message { return c.messages }

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	if err, ok := c.readErr.Load().(error); ok {
		return err
	}
	return nil
}

// Send encodes and writes one message.
func (c *Client) Send(msg protocol.Message) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	frame, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err = c.conn.WriteMessage(frameType, frame); err != nil {
		return errors.Wrapf(err, "failed to send %s", msg.Type())
	}
	c.logger.Debug("Message sent", log.String("type", msg.Type()))
	return nil
}

// AssignCharacter announces the controlled character and waits for the
// server id.
func (c *Client) AssignCharacter(ctx context.Context, req *protocol.AssignCharacterRequest) (models.EntityID, error) {
	if err := c.Send(req); err != nil {
		return models.NilEntity, err
	}
	msg, err := c.Await(ctx, protocol.TypeAssignCharacterAck)
	if err != nil {
		return models.NilEntity, err
	}
	return msg.(*protocol.AssignCharacterResponse).ServerID, nil
}

// Await returns the next message of type typ. Other messages received in
// the meantime are dropped, except an ErrorNotice which aborts the wait.
func (c *Client) Await(ctx context.Context, typ string) (protocol.Message, error) {
	for {
		select {
		case msg, ok := <-c.messages:
			if !ok {
				if err := c.Err(); err != nil {
					return nil, err
				}
				return nil, ErrClientClosed
			}
			if msg.Type() == typ {
				return msg, nil
			}
			if notice, isNotice := msg.(*protocol.ErrorNotice); isNotice {
				return nil, fmt.Errorf("%w: %s", ErrRejected, notice.Reason)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	c.logger.Info("Client closed")
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.readErr.Store(errors.Wrap(err, "read failed"))
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable frame", log.Error(err), log.Int("size", len(data)))
			continue
		}
		select {
		case c.messages <- msg:
		default:
			c.logger.Warn("Message buffer full, dropping", log.String("type", msg.Type()))
		}
	}
}
