package quic

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Frames on the stream are a 4 byte big-endian length followed by the body.
const frameHeaderSize = 4

var ErrFrameTooLarge = errors.New("frame too large")

func writeFrame(w io.Writer, body []byte) error {
	buf := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[frameHeaderSize:], body)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one frame. max <= 0 disables the size check.
func readFrame(r io.Reader, max int) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if max > 0 && int(n) > max {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes exceeds %d", n, max)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "short frame")
	}
	return body, nil
}
