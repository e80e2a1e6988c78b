package quic

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/cellsync/internal/core/protocol"
)

var _ protocol.Peer = (*peer)(nil)

// peer owns the write side of one stream.
type peer struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	queue  *protocol.Queue
	config Config

	closeOnce sync.Once
}

func newPeer(conn *quic.Conn, stream *quic.Stream, config Config) *peer {
	return &peer{
		id:     uuid.NewString(),
		conn:   conn,
		stream: stream,
		queue:  protocol.NewQueue(config.QueueSize),
		config: config,
	}
}

func (p *peer) Enqueue(frame []byte) error { return p.queue.Enqueue(frame) }

func (p *peer) writeLoop() error {
	for {
		select {
		case <-p.queue.Done():
			return nil
		case frame := <-p.queue.Frames():
			if p.config.WriteTimeout > 0 {
				_ = p.stream.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout))
			}
			if err := writeFrame(p.stream, frame); err != nil {
				return errors.Wrap(err, "failed to write frame")
			}
		}
	}
}

func (p *peer) close(code quic.ApplicationErrorCode, reason string) {
	p.closeOnce.Do(func() {
		p.queue.Close()
		_ = p.stream.Close()
		_ = p.conn.CloseWithError(code, reason)
	})
}
