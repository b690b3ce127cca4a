package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

func seedConversation(t *testing.T, s *Store, n int) (*model.Conversation, []model.Message) {
	t.Helper()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "inbox-1", model.Contact{
		Name:        "Ada",
		PhoneNumber: "+15550001111",
	})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	msgs := make([]model.Message, n)
	for i := 0; i < n; i++ {
		msg, err := s.AppendMessage(ctx, conv.ID, "msg", model.DirectionInbound, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		msgs[i] = *msg
	}
	return conv, msgs
}

func pageIDs(page *model.MessagePage) []string {
	ids := make([]string, len(page.Messages))
	for i, m := range page.Messages {
		ids[i] = m.ID
	}
	return ids
}

func TestStoreListMessagesLatestWindow(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 10)

	page, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{Limit: 4})
	require.NoError(t, err)

	assert.Equal(t, []string{msgs[6].ID, msgs[7].ID, msgs[8].ID, msgs[9].ID}, pageIDs(page))
	assert.True(t, page.HasMoreOlder)
	assert.False(t, page.HasMoreNewer)
}

func TestStoreListMessagesBeforeCursor(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 10)

	page, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{
		Limit:    3,
		BeforeID: msgs[5].ID,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{msgs[2].ID, msgs[3].ID, msgs[4].ID}, pageIDs(page))
	assert.True(t, page.HasMoreOlder)
	assert.True(t, page.HasMoreNewer)
}

func TestStoreListMessagesBeforeCursorExhausts(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 5)

	page, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{
		Limit:    10,
		BeforeID: msgs[2].ID,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{msgs[0].ID, msgs[1].ID}, pageIDs(page))
	assert.False(t, page.HasMoreOlder)
}

func TestStoreListMessagesAfterCursor(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 10)

	page, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{
		Limit:   3,
		AfterID: msgs[5].ID,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{msgs[6].ID, msgs[7].ID, msgs[8].ID}, pageIDs(page))
	assert.True(t, page.HasMoreNewer)
}

func TestStoreListMessagesHighlightCentered(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 10)

	page, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{
		Limit:       4,
		HighlightID: msgs[5].ID,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{msgs[3].ID, msgs[4].ID, msgs[5].ID, msgs[6].ID}, pageIDs(page))
	assert.True(t, page.HasMoreOlder)
	assert.True(t, page.HasMoreNewer)
}

func TestStoreListMessagesUnknownCursor(t *testing.T) {
	s := NewStore()
	conv, _ := seedConversation(t, s, 3)

	_, err := s.ListMessages(context.Background(), conv.ID, model.PageRequest{BeforeID: "nope"})
	assert.Error(t, err)
}

func TestStoreAppendUpdatesLastMessage(t *testing.T) {
	s := NewStore()
	conv, msgs := seedConversation(t, s, 3)

	got, err := s.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, msgs[2].ID, got.LastMessage.ID)
}

func TestStoreUpdateStatus(t *testing.T) {
	s := NewStore()
	conv, _ := seedConversation(t, s, 1)

	updated, err := s.UpdateStatus(context.Background(), conv.ID, model.StatusHumanActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHumanActive, updated.Status)

	got, err := s.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHumanActive, got.Status)
}

func TestStoreUpdateStatusUnknownConversation(t *testing.T) {
	s := NewStore()

	_, err := s.UpdateStatus(context.Background(), "missing", model.StatusClosed)
	assert.Error(t, err)
}

func TestStoreListConversationsFiltersByStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, _ := seedConversation(t, s, 1)
	b, _ := seedConversation(t, s, 1)
	_, err := s.UpdateStatus(ctx, b.ID, model.StatusClosed)
	require.NoError(t, err)

	resp, err := s.ListConversations(ctx, model.StatusOpen, 20, 0)
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, a.ID, resp.Conversations[0].ID)
}
