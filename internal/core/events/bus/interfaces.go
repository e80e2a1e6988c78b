package bus

import "time"

// EventBus is a synchronous, in-process pub/sub bus.
//
// Key characteristics:
//   - Type-based fan-out: handlers subscribe by Event.Type().
//   - Ordered delivery: handlers run in subscription order.
//   - Synchronous delivery: Publish calls every handler on the caller goroutine
//     and returns only after the last one has returned.
//   - Reentrant: handlers may publish, subscribe, unsubscribe or mutate shared
//     state. The handler list is snapshotted before delivery, so a handler
//     subscribed during a publish first sees the next publish. A handler
//     cancelled during a publish is not called afterwards.
//   - Error aggregation: handler errors are joined and returned from Publish.
//   - Optional observability: metrics are produced only when observers are registered.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for eventType and returns the handle that
	// cancels it.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error
	// PublishBatch publishes events in order and aggregates errors across them.
	PublishBatch(events ...Event) error
	// SubscriberCount returns the number of active handlers for eventType.
	SubscriberCount(eventType string) int

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of counters. Counters only move while at
	// least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
}
