package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishToTypedSubscriber(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})

	bus.Subscribe(EventCycleCompleted, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(Event{Type: EventCycleCompleted, Data: map[string]interface{}{"balance": 1000.0}})
	bus.Publish(Event{Type: EventCycleFailed})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != EventCycleCompleted {
		t.Errorf("type = %v", got[0].Type)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("publish must stamp a missing timestamp")
	}
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	bus := NewBus()

	events := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { events <- e })

	published := []EventType{EventCycleStarted, EventTradeExecuted, EventLedgerSaved}
	for _, typ := range published {
		bus.Publish(Event{Type: typ})
	}

	seen := map[EventType]bool{}
	for range published {
		select {
		case e := <-events:
			seen[e.Type] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	for _, typ := range published {
		if !seen[typ] {
			t.Errorf("missing %v", typ)
		}
	}
}
