package model

import (
	"time"
)

// Status is the lifecycle state of a conversation. The server is the authority
// on which transitions are legal; clients may request any state from any other.
type Status string

const (
	StatusOpen        Status = "open"
	StatusPending     Status = "pending"
	StatusHumanActive Status = "human_active"
	StatusClosed      Status = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusHumanActive, StatusClosed:
		return true
	}
	return false
}

// Contact is the external counterpart of a conversation.
type Contact struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Conversation is a thread of messages between the platform and one contact
// over a channel endpoint (an inbox).
type Conversation struct {
	ID          string    `json:"id"`
	InboxID     string    `json:"inbox_id"`
	Status      Status    `json:"status"`
	Contact     Contact   `json:"contact"`
	LastMessage *Message  `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateStatusRequest is the request to change a conversation's status.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
