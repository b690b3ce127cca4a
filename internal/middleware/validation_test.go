package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", 100001)))
	assert.Error(t, ValidateMessageContent("bad \xff utf8"))
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID("abc123"))
	assert.Error(t, ValidateConversationID(""))
	assert.Error(t, ValidateConversationID(strings.Repeat("x", 65)))
}

func TestValidateStatus(t *testing.T) {
	for _, s := range []model.Status{
		model.StatusOpen, model.StatusPending, model.StatusHumanActive, model.StatusClosed,
	} {
		assert.NoError(t, ValidateStatus(s))
	}
	assert.Error(t, ValidateStatus(model.Status("archived")))
}
