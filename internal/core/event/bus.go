// Package event is the in-process publish/subscribe bus carrying job
// lifecycle notifications between the server, the processor and observers
// such as the logging subscriber.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, event Event) error

type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe registers the handler for every listed event type and
	// returns a function that removes it from all of them.
	Subscribe(handler Handler, types ...EventType) (unsubscribe func())
}

// NewBus creates an in-process event bus.
func NewBus() Bus {
	return &inProcessBus{
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

type subscriberEntry struct {
	id      uint64
	handler Handler
}

type inProcessBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscriberEntry
	nextID      uint64
}

func (b *inProcessBus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscriberEntry, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			log.Error().Err(err).
				Str("event", string(event.Type)).
				Msg("event handler error")
		}
	}
	return nil
}

func (b *inProcessBus) Subscribe(handler Handler, types ...EventType) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], subscriberEntry{
			id:      id,
			handler: handler,
		})
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range types {
			subs := b.subscribers[t]
			for i, s := range subs {
				if s.id == id {
					b.subscribers[t] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
	}
}
