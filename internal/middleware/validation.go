package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if len(id) == 0 {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("conversation ID exceeds maximum length")
	}
	return nil
}

// ValidateStatus validates a conversation status value.
func ValidateStatus(status model.Status) error {
	if !status.Valid() {
		return errors.New("unknown conversation status")
	}
	return nil
}
