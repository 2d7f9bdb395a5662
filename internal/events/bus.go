package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventBiasComputed       EventType = "BIAS_COMPUTED"
	EventResolutionComputed EventType = "RESOLUTION_COMPUTED"
	EventSynthesisViolation EventType = "SYNTHESIS_VIOLATION"
	EventScanStarted        EventType = "SCAN_STARTED"
	EventScanCompleted      EventType = "SCAN_COMPLETED"
	EventError              EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
	now         func() time.Time
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
		now:         time.Now,
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its
// own goroutine so a slow consumer never blocks the publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = eb.now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishBias publishes a single-timeframe bias
func (eb *EventBus) PublishBias(reportID, symbol, timeframe, bias string, score float64, vetoed bool) {
	eb.Publish(Event{
		Type: EventBiasComputed,
		Data: map[string]interface{}{
			"report_id": reportID,
			"symbol":    symbol,
			"timeframe": timeframe,
			"bias":      bias,
			"score":     score,
			"vetoed":    vetoed,
		},
	})
}

// PublishResolution publishes a multi-timeframe resolution. resolution is
// the JSON-ready resolution value.
func (eb *EventBus) PublishResolution(symbol, state, action string, resolution interface{}) {
	eb.Publish(Event{
		Type: EventResolutionComputed,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"state":      state,
			"action":     action,
			"resolution": resolution,
		},
	})
}

// PublishSynthesisViolation reports a UI state that did not match its
// resolution
func (eb *EventBus) PublishSynthesisViolation(symbol, state string) {
	eb.Publish(Event{
		Type: EventSynthesisViolation,
		Data: map[string]interface{}{
			"symbol": symbol,
			"state":  state,
		},
	})
}

// PublishScanStarted publishes the start of a scanner run
func (eb *EventBus) PublishScanStarted(scanID string, symbols int) {
	eb.Publish(Event{
		Type: EventScanStarted,
		Data: map[string]interface{}{
			"scan_id": scanID,
			"symbols": symbols,
		},
	})
}

// PublishScanCompleted publishes the end of a scanner run
func (eb *EventBus) PublishScanCompleted(scanID string, succeeded, failed int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"scan_id":     scanID,
			"succeeded":   succeeded,
			"failed":      failed,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

// Global event bus instance
var globalBus *EventBus
var globalOnce sync.Once

// GetEventBus returns the process-wide event bus
func GetEventBus() *EventBus {
	globalOnce.Do(func() {
		globalBus = NewEventBus()
	})
	return globalBus
}
