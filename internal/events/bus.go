package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(event *Event)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus fans events out to subscribers by type.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	nextID      SubscriptionID
	log         zerolog.Logger
}

// NewBus creates an event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]subscription),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

// Unsubscribe removes a subscription from every event type.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		kept := subs[:0:0]
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subscribers, eventType)
		} else {
			b.subscribers[eventType] = kept
		}
	}
}

// SubscriberCount returns the number of handlers for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Publish delivers event to every subscriber of its type. A panicking
// handler is logged and does not affect the others.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, event)
	}
}

func (b *Bus) deliver(s subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	s.handler(event)
}
