package quic

import (
	"context"
	"crypto/tls"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// Client is a minimal framed client for the QUIC transport.
type Client struct {
	conn   *quic.Conn
	stream *quic.Stream
}

// Dial connects, opens the stream and sends the hello frame.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, username string) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(codeNormal, "")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	if err = writeFrame(stream, []byte(username)); err != nil {
		_ = conn.CloseWithError(codeNormal, "")
		return nil, errors.Wrap(err, "failed to send hello")
	}
	return &Client{conn: conn, stream: stream}, nil
}

func (c *Client) Send(frame []byte) error { return writeFrame(c.stream, frame) }

func (c *Client) Receive() ([]byte, error) { return readFrame(c.stream, 0) }

func (c *Client) Close() error {
	_ = c.stream.Close()
	return c.conn.CloseWithError(codeNormal, "bye")
}
