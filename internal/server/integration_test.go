package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-feed/internal/bridge"
	"github.com/capitalize-ai/inbox-feed/internal/client"
	"github.com/capitalize-ai/inbox-feed/internal/feed"
	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// Full path: REST client + feed + bridge against the reference server.
func TestFeedEndToEnd(t *testing.T) {
	srv, store, _ := newTestServer(t)
	token := signToken(t)
	conv, _ := seedConversation(t, store, 4)

	api := client.New(srv.URL, client.StaticToken(token))
	f := feed.New(conv.ID, api, feed.WithPageSize(3))

	require.NoError(t, f.LoadInitial(context.Background(), ""))
	require.Equal(t, feed.StateReady, f.State())
	assert.Len(t, f.Messages(), 3)
	assert.True(t, f.Flags().HasMoreOlder)

	// Backfill the remaining history.
	f.LoadOlder(context.Background())
	assert.Len(t, f.Messages(), 4)
	assert.False(t, f.Flags().HasMoreOlder)

	// Live delivery through the bridge.
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	b := bridge.Dial(context.Background(), wsBase, conv.ID, f.ApplyLive,
		bridge.WithToken(token))
	defer b.Close()

	// Give the bridge a moment to connect before producing the event.
	time.Sleep(300 * time.Millisecond)

	resp := doRequest(t, srv, http.MethodPost,
		"/api/v1/conversations/"+conv.ID+"/messages/incoming", token,
		model.SendMessageRequest{Content: "are you there?"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		for _, m := range f.Messages() {
			if m.Content == "are you there?" && m.Direction == model.DirectionInbound {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	// Sending through the feed lands in the store exactly once even though
	// the same message also arrives as a live event.
	sent, err := f.Send(context.Background(), "on my way")
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	count := 0
	for _, m := range f.Messages() {
		if m.ID == sent.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Optimistic status change round-trips.
	require.NoError(t, f.UpdateStatus(context.Background(), model.StatusHumanActive))
	assert.Equal(t, model.StatusHumanActive, f.Conversation().Status)

	got, err := store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHumanActive, got.Status)
}
