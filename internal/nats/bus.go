package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/capitalize-ai/inbox-feed/internal/events"
	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// SubjectPrefix is the prefix for conversation event subjects.
const SubjectPrefix = "conv.events"

// EventSubject returns the subject carrying live events for a conversation.
func EventSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, conversationID)
}

// Bus is the NATS-backed event bus. Events published on any instance reach
// WebSocket subscribers on every instance.
type Bus struct {
	client *Client
}

// NewBus creates a Bus over an established NATS connection.
func NewBus(client *Client) *Bus {
	return &Bus{client: client}
}

// Publish implements events.Bus.
func (b *Bus) Publish(ctx context.Context, conversationID string, event *model.LiveEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.conn.Publish(EventSubject(conversationID), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe implements events.Bus.
func (b *Bus) Subscribe(conversationID string, fn events.Handler) (func(), error) {
	sub, err := b.client.conn.Subscribe(EventSubject(conversationID), func(msg *nats.Msg) {
		var event model.LiveEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.client.logger.Warn("dropping malformed bus event")
			return
		}
		fn(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return func() {
		sub.Unsubscribe()
	}, nil
}
