// Package model defines data structures for the inbox feed.
package model

import (
	"time"
)

// Direction indicates which side of the conversation sent a message.
type Direction string

const (
	// DirectionInbound marks a message from the external contact.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound marks a message sent by the platform to the contact.
	DirectionOutbound Direction = "outbound"
)

// ContentType tags the payload format of a message.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
)

// Message is a single message inside a conversation. IDs are unique within
// their conversation; ordering for rendering is derived from SentAt, not from
// arrival order on the wire.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// Content
	Content     string      `json:"content"`
	Direction   Direction   `json:"direction"`
	ContentType ContentType `json:"content_type"`

	// Timestamps
	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendMessageRequest is the request to send a new outbound message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MessagePage is one page of a conversation's message history. Messages are in
// ascending chronological order. The has_more flags refer to history beyond
// each edge of the page.
type MessagePage struct {
	Messages     []Message `json:"messages"`
	HasMoreOlder bool      `json:"has_more_older"`
	HasMoreNewer bool      `json:"has_more_newer"`
}

// PageRequest selects a window of a conversation's history. At most one of
// BeforeID, AfterID, HighlightID is honored; with none set the latest window
// is returned.
type PageRequest struct {
	Limit       int
	BeforeID    string
	AfterID     string
	HighlightID string
}
