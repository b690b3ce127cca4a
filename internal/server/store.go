// Package server implements the reference inbox server: the REST and
// WebSocket surface the feed client talks to, backed by an in-memory store.
// Business logic is deliberately thin; it exists for local development and
// end-to-end tests, not as a production backend.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// Store is an in-memory conversation and message store. A production backend
// would put this behind a database; the map+RWMutex shape keeps the reference
// server self-contained.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	// messages are kept in ascending SentAt order per conversation.
	messages map[string][]model.Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
	}
}

// CreateConversation registers a conversation for a contact.
func (s *Store) CreateConversation(ctx context.Context, inboxID string, contact model.Contact) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		InboxID:   inboxID,
		Status:    model.StatusOpen,
		Contact:   contact,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, fmt.Errorf("conversation not found")
	}

	clone := *conv
	return &clone, nil
}

// ListConversations retrieves conversations, optionally filtered by status,
// newest activity first.
func (s *Store) ListConversations(ctx context.Context, status model.Status, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range s.conversations {
		if status != "" && conv.Status != status {
			continue
		}
		convs = append(convs, *conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	total := len(convs)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListConversationsResponse{
		Conversations: convs[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

// UpdateStatus sets a conversation's status. Any known status is accepted
// from any other; workflow rules live outside this reference server.
func (s *Store) UpdateStatus(ctx context.Context, conversationID string, status model.Status) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, fmt.Errorf("conversation not found")
	}

	conv.Status = status
	conv.UpdatedAt = time.Now()

	clone := *conv
	return &clone, nil
}

// AppendMessage creates a message in a conversation and updates its
// last-message summary. SentAt of zero means now.
func (s *Store) AppendMessage(ctx context.Context, conversationID, content string, direction model.Direction, sentAt time.Time) (*model.Message, error) {
	now := time.Now()
	if sentAt.IsZero() {
		sentAt = now
	}

	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Content:        content,
		Direction:      direction,
		ContentType:    model.ContentTypeText,
		SentAt:         sentAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, fmt.Errorf("conversation not found")
	}

	list := s.messages[conversationID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].SentAt.After(msg.SentAt)
	})
	list = append(list, model.Message{})
	copy(list[i+1:], list[i:])
	list[i] = msg
	s.messages[conversationID] = list

	clone := msg
	conv.LastMessage = &clone
	conv.UpdatedAt = now

	return &msg, nil
}

// ListMessages returns one page of a conversation's history. Cursor variants:
// before_id (older page), after_id (newer page), highlight_id (window centered
// on a message, for deep links), or none (latest window).
func (s *Store) ListMessages(ctx context.Context, conversationID string, page model.PageRequest) (*model.MessagePage, error) {
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Limit > 100 {
		page.Limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.conversations[conversationID]; !exists {
		return nil, fmt.Errorf("conversation not found")
	}

	list := s.messages[conversationID]

	var start, end int
	switch {
	case page.BeforeID != "":
		idx, ok := indexOf(list, page.BeforeID)
		if !ok {
			return nil, fmt.Errorf("unknown cursor message")
		}
		end = idx
		start = end - page.Limit
		if start < 0 {
			start = 0
		}

	case page.AfterID != "":
		idx, ok := indexOf(list, page.AfterID)
		if !ok {
			return nil, fmt.Errorf("unknown cursor message")
		}
		start = idx + 1
		end = start + page.Limit
		if end > len(list) {
			end = len(list)
		}

	case page.HighlightID != "":
		idx, ok := indexOf(list, page.HighlightID)
		if !ok {
			return nil, fmt.Errorf("unknown highlight message")
		}
		start = idx - page.Limit/2
		if start < 0 {
			start = 0
		}
		end = start + page.Limit
		if end > len(list) {
			end = len(list)
		}

	default:
		end = len(list)
		start = end - page.Limit
		if start < 0 {
			start = 0
		}
	}

	messages := make([]model.Message, end-start)
	copy(messages, list[start:end])

	return &model.MessagePage{
		Messages:     messages,
		HasMoreOlder: start > 0,
		HasMoreNewer: end < len(list),
	}, nil
}

func indexOf(list []model.Message, id string) (int, bool) {
	for i, msg := range list {
		if msg.ID == id {
			return i, true
		}
	}
	return 0, false
}
