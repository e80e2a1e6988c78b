package bus

import (
	"errors"
	"testing"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestPublishIsSynchronous(t *testing.T) {
	b := New()
	called := false
	if _, err := b.Subscribe("test.event", func(e Event) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Publish(NewEvent("test.event", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !called {
		t.Fatal("handler must have run before Publish returned")
	}
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, _ = b.Subscribe("ev", func(Event) error { order = append(order, i); return nil })
	}
	_ = b.Publish(NewEvent("ev", "src", nil))
	for i, v := range order {
		if v != i {
			t.Fatalf("out of order delivery: %v", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(order))
	}
}

func TestOnlyMatchingTypeIsDelivered(t *testing.T) {
	b := New()
	count := 0
	_, _ = b.Subscribe("a", func(Event) error { count++; return nil })
	_ = b.Publish(NewEvent("b", "src", nil))
	if count != 0 {
		t.Fatalf("handler for a received b")
	}
}

func TestReentrantPublish(t *testing.T) {
	b := New()
	var trace []string
	_, _ = b.Subscribe("outer", func(Event) error {
		trace = append(trace, "outer:start")
		if err := b.Publish(NewEvent("inner", "outer", nil)); err != nil {
			return err
		}
		trace = append(trace, "outer:end")
		return nil
	})
	_, _ = b.Subscribe("inner", func(Event) error {
		trace = append(trace, "inner")
		return nil
	})

	if err := b.Publish(NewEvent("outer", "src", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"outer:start", "inner", "outer:end"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestCancelDuringPublishSkipsLaterHandler(t *testing.T) {
	b := New()
	var second Subscription
	secondCalls := 0
	_, _ = b.Subscribe("ev", func(Event) error {
		return second.Cancel()
	})
	second, _ = b.Subscribe("ev", func(Event) error {
		secondCalls++
		return nil
	})

	_ = b.Publish(NewEvent("ev", "src", nil))
	if secondCalls != 0 {
		t.Fatalf("cancelled handler ran %d times", secondCalls)
	}
	if second.IsActive() {
		t.Fatal("subscription should be inactive")
	}
	if n := b.SubscriberCount("ev"); n != 1 {
		t.Fatalf("expected 1 subscriber left, got %d", n)
	}
}

func TestSubscribeDuringPublishWaitsForNextPublish(t *testing.T) {
	b := New()
	lateCalls := 0
	subscribed := false
	_, _ = b.Subscribe("ev", func(Event) error {
		if !subscribed {
			subscribed = true
			_, _ = b.Subscribe("ev", func(Event) error { lateCalls++; return nil })
		}
		return nil
	})

	_ = b.Publish(NewEvent("ev", "src", nil))
	if lateCalls != 0 {
		t.Fatalf("late subscriber must not see the in-flight event")
	}
	_ = b.Publish(NewEvent("ev", "src", nil))
	if lateCalls != 1 {
		t.Fatalf("late subscriber should see the next event, got %d", lateCalls)
	}
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	otherRan := false
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { otherRan = true; return nil })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !otherRan {
		t.Fatal("a failing handler must not stop delivery")
	}
}

func TestPublishBatch(t *testing.T) {
	b := New()
	count := 0
	_, _ = b.Subscribe("x", func(Event) error { count++; return nil })
	if err := b.PublishBatch(NewEvent("x", "s", nil), NewEvent("x", "s", nil)); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deliveries, got %d", count)
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("x", nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
	if _, err := b.Subscribe("", func(Event) error { return nil }); !errors.Is(err, ErrEmptyEventType) {
		t.Fatalf("expected ErrEmptyEventType, got %v", err)
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("unsubscribe nil: %v", err)
	}
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	m := b.GetMetrics()
	if m.Published != 0 || m.DeliveredHandlers != 0 {
		t.Fatalf("metrics should be zero without observers: %+v", m)
	}

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	m2 := b.GetMetrics()
	if m2.Published != 1 || m2.DeliveredHandlers != 1 || m2.SubscribersActive != 1 {
		t.Fatalf("metrics should update with observer: %+v", m2)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 1 {
		t.Fatalf("observer not called: %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	if obs.publishCount != 1 {
		t.Fatal("removed observer was notified")
	}
}
