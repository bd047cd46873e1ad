// Package events is the in-process bus that cycle lifecycle events flow
// over. The websocket stream and any other observer subscribe here.
package events

import (
	"sync"
	"time"
)

// EventType represents the kinds of events the agent emits.
type EventType string

const (
	EventCycleStarted   EventType = "CYCLE_STARTED"
	EventCycleCompleted EventType = "CYCLE_COMPLETED"
	EventCycleFailed    EventType = "CYCLE_FAILED"
	EventPhaseChanged   EventType = "PHASE_CHANGED"
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
	EventLedgerSaved    EventType = "LEDGER_SAVED"
	EventReportSent     EventType = "REPORT_SENT"
	EventSummaryReady   EventType = "SUMMARY_READY"
	EventError          EventType = "ERROR"
)

// Event is one bus message.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events.
type Subscriber func(Event)

// Bus manages event publishing and subscriptions.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type.
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run on their own
// goroutines so a slow observer cannot stall a trading cycle.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}
