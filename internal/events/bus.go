// Package events defines the live-event bus used to fan conversation events
// out to WebSocket subscribers. The local implementation serves a single
// process; the NATS implementation (internal/nats) spans instances.
package events

import (
	"context"
	"sync"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// Handler receives live events for one conversation.
type Handler func(event *model.LiveEvent)

// Bus publishes and subscribes conversation-scoped live events.
type Bus interface {
	// Publish delivers event to all subscribers of conversationID.
	Publish(ctx context.Context, conversationID string, event *model.LiveEvent) error

	// Subscribe registers fn for conversationID and returns an unsubscribe
	// function.
	Subscribe(conversationID string, fn Handler) (func(), error)
}

// LocalBus is an in-process Bus.
type LocalBus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

// NewLocalBus creates an in-process event bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]Handler)}
}

// Publish implements Bus.
func (b *LocalBus) Publish(ctx context.Context, conversationID string, event *model.LiveEvent) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[conversationID]))
	for _, fn := range b.subs[conversationID] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
	return nil
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(conversationID string, fn Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[int]Handler)
	}
	b.subs[conversationID][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[conversationID], id)
		if len(b.subs[conversationID]) == 0 {
			delete(b.subs, conversationID)
		}
	}, nil
}
