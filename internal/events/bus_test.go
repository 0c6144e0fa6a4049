package events

import (
	"sync/atomic"
	"testing"
)

func TestPublishCallsMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		if e.Type != DeliveryFailed {
			t.Errorf("expected DeliveryFailed, got %s", e.Type)
		}
		called.Store(true)
	}, DeliveryFailed)

	bus.Publish(Event{Type: DeliveryFailed, Message: "smtp timeout"})

	if !called.Load() {
		t.Error("subscriber was not called")
	}
}

func TestSubscriberIgnoresUnmatchedTypes(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		called.Store(true)
	}, NotificationCreated)

	bus.Publish(Event{Type: ScheduleExecuted})

	if called.Load() {
		t.Error("subscriber should not have been called for ScheduleExecuted")
	}
}

func TestWildcardSubscriberReceivesAll(t *testing.T) {
	bus := NewBus()
	var count atomic.Int32

	bus.Subscribe(func(e Event) { count.Add(1) })

	bus.Publish(Event{Type: NotificationCreated})
	bus.Publish(Event{Type: RetryExhausted})

	if count.Load() != 2 {
		t.Errorf("expected 2 events, got %d", count.Load())
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(func(e Event) {
		if e.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	})

	bus.Publish(Event{Type: NotificationCreated})
}

func TestSubscriberPanicDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) { panic("boom") })
	bus.Subscribe(func(e Event) { called.Store(true) })

	bus.Publish(Event{Type: DeliveryFailed})

	if !called.Load() {
		t.Error("second subscriber should still run after panic")
	}
}
