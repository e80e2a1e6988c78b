// Package audit persists the lifecycle event stream as hourly zstd
// compressed JSON lines.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Writer appends JSON values to <dir>/<prefix>-<yyyy-mm-dd-hh>.jsonl.zst,
// switching files when the UTC hour changes.
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err = w.w.Write(b); err != nil {
		return err
	}
	if err = w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err = w.w.Flush(); err != nil {
		return err
	}
	// Ends the current zstd block so every written record can be decoded
	// before Close finishes the frame.
	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file used for the hour containing t.
func (w *Writer) Path(t time.Time) string {
	return w.pathForHour(t.UTC().Format("2006-01-02-15"))
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
