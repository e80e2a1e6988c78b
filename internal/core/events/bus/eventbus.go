package bus

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// simpleEvent is a basic implementation of Event for callers without their
// own event types.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event carrying data.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    atomic.Bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
	return nil
}

// inMemoryBus keeps, per event type, handlers in subscription order.
type inMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]*subscription
	observers []EventBusObserver

	published  atomic.Uint64
	delivered  atomic.Uint64
	errorCount atomic.Uint64
}

// New creates a new EventBus instance.
func New() EventBus {
	return &inMemoryBus{
		handlers: make(map[string][]*subscription),
	}
}

func (b *inMemoryBus) Publish(event Event) error {
	if event == nil {
		return nil
	}
	return b.deliver(event)
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if eventType == "" {
		return nil, ErrEmptyEventType
	}

	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = slices.DeleteFunc(b.handlers[eventType], func(other *subscription) bool {
			return other == s
		})
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], s)
	b.mu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers = append(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers = slices.DeleteFunc(b.observers, func(o EventBusObserver) bool { return o == obs })
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	var subs uint64
	for _, list := range b.handlers {
		subs += uint64(len(list))
	}
	b.mu.RUnlock()

	return EventBusMetrics{
		Published:         b.published.Load(),
		DeliveredHandlers: b.delivered.Load(),
		Errors:            b.errorCount.Load(),
		SubscribersActive: subs,
	}
}

func (b *inMemoryBus) deliver(event Event) error {
	start := time.Now()
	etype := event.Type()

	b.mu.RLock()
	subs := slices.Clone(b.handlers[etype])
	observers := slices.Clone(b.observers)
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(etype, event)
	}

	var all error
	called := 0
	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		called++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) > 0 {
		dur := time.Since(start).Microseconds()
		for _, obs := range observers {
			obs.OnDelivered(etype, called, all, dur)
		}
		b.published.Add(1)
		b.delivered.Add(uint64(called))
		if all != nil {
			b.errorCount.Add(1)
		}
	}
	return all
}
