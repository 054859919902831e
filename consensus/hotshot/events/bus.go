package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Publisher publishes events. Tasks emit their output through a Publisher.
type Publisher interface {
	Publish(event Event)
}

// Subscriber receives every event published on the bus. Deliver must not block.
type Subscriber interface {
	Deliver(event Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(event Event)

func (f SubscriberFunc) Deliver(event Event) { f(event) }

// Bus is the in-process broadcast channel between consensus tasks. Every subscriber sees
// every event, in publication order per publishing goroutine.
//
// Concurrency safe.
type Bus struct {
	log         zerolog.Logger
	mu          sync.RWMutex
	subscribers []Subscriber
}

var _ Publisher = (*Bus)(nil)

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log: log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber for all events published afterwards.
func (b *Bus) Subscribe(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.log.Trace().Str("event", event.Name()).Int("subscribers", len(b.subscribers)).Msg("publishing event")
	for _, s := range b.subscribers {
		s.Deliver(event)
	}
}
