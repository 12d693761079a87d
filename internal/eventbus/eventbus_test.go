package eventbus

import (
	"testing"
	"time"

	"github.com/opik/osem/internal/ports"
)

func TestPublishDeliversToTypedAndAllSubscribers(t *testing.T) {
	b := New()

	var typedCalls, allCalls int
	b.Subscribe(ports.EventTypeCreated, func(ports.Notification) { typedCalls++ })
	b.SubscribeAll(func(ports.Notification) { allCalls++ })

	b.Publish(ports.NewBaseEvent(ports.EventTypeCreated, time.Now()))

	if typedCalls != 1 {
		t.Fatalf("typed handler calls = %d, want 1", typedCalls)
	}
	if allCalls != 1 {
		t.Fatalf("all-handler calls = %d, want 1", allCalls)
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	b := New()

	var order []ports.EventType
	b.SubscribeAll(func(n ports.Notification) { order = append(order, n.Type()) })

	b.Publish(ports.NewBaseEvent(ports.EventTypeCreated, time.Now()))
	b.Publish(ports.NewBaseEvent(ports.EventTypeUpdated, time.Now()))
	b.Publish(ports.NewBaseEvent(ports.EventTypeMailAppended, time.Now()))

	want := []ports.EventType{ports.EventTypeCreated, ports.EventTypeUpdated, ports.EventTypeMailAppended}
	if len(order) != len(want) {
		t.Fatalf("got %d notifications, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	var calls int
	unsubscribe := b.Subscribe(ports.EventTypeCreated, func(ports.Notification) { calls++ })
	unsubscribe()

	b.Publish(ports.NewBaseEvent(ports.EventTypeCreated, time.Now()))

	if calls != 0 {
		t.Fatalf("calls after unsubscribe = %d, want 0", calls)
	}
}

func TestNotDeliveredToOtherTypes(t *testing.T) {
	b := New()

	var calls int
	b.Subscribe(ports.EventTypeCreated, func(ports.Notification) { calls++ })

	b.Publish(ports.NewBaseEvent(ports.EventTypeDeleted, time.Now()))

	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}
