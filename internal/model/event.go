package model

import (
	"encoding/json"
)

// EventType tags a live event pushed over the conversation WebSocket.
type EventType string

const (
	// EventTypeNewMessage announces an outbound message created on the server.
	EventTypeNewMessage EventType = "new_message"
	// EventTypeIncomingMessage announces an inbound message from the contact.
	EventTypeIncomingMessage EventType = "incoming_message"
)

// LiveEvent is the envelope for server-pushed frames. Payload is kept raw so
// unrecognized event types can be dropped without decoding their bodies.
type LiveEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewLiveEvent builds an envelope carrying msg.
func NewLiveEvent(t EventType, msg *Message) (*LiveEvent, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &LiveEvent{Type: t, Payload: data}, nil
}

// MessagePayload decodes the envelope payload as a Message.
func (e *LiveEvent) MessagePayload() (*Message, error) {
	var msg Message
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
