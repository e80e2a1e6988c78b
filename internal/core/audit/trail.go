package audit

import (
	"errors"
	"time"

	"github.com/zeusync/cellsync/internal/core/events"
	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/observability/log"
)

// Record is one line of the audit trail.
type Record struct {
	Seq    uint64    `json:"seq"`
	Type   string    `json:"type"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
	Event  any       `json:"event"`
}

// Trail subscribes to every lifecycle event and writes it to a Writer.
// Handlers run on the publisher's goroutine, which is the world loop.
type Trail struct {
	writer *Writer
	logger log.Log
	subs   []bus.Subscription
	seq    uint64
}

// Attach subscribes a new trail on b.
func Attach(b bus.EventBus, writer *Writer, logger log.Log) (*Trail, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	t := &Trail{writer: writer, logger: logger.With(log.String("component", "audit"))}
	for _, typ := range events.All() {
		sub, err := b.Subscribe(typ, t.record)
		if err != nil {
			_ = t.Close()
			return nil, err
		}
		t.subs = append(t.subs, sub)
	}
	return t, nil
}

func (t *Trail) record(e bus.Event) error {
	t.seq++
	err := t.writer.Write(Record{
		Seq:    t.seq,
		Type:   e.Type(),
		Source: e.Source(),
		At:     e.Timestamp(),
		Event:  e,
	})
	if err != nil {
		t.logger.Warn("Failed to write audit record", log.String("event", e.Type()), log.Error(err))
	}
	return err
}

// Close unsubscribes and flushes the writer.
func (t *Trail) Close() error {
	var errs []error
	for _, sub := range t.subs {
		errs = append(errs, sub.Cancel())
	}
	t.subs = nil
	errs = append(errs, t.writer.Close())
	return errors.Join(errs...)
}
