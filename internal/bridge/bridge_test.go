package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

func TestEndpointURL(t *testing.T) {
	assert.Equal(t,
		"ws://localhost:8000/ws/conversations/abc123",
		EndpointURL("ws://localhost:8000", "abc123"),
	)
	assert.Equal(t,
		"ws://localhost:8000/ws/conversations/abc123",
		EndpointURL("ws://localhost:8000/", "abc123"),
	)
}

func TestWithTokenAppendsQueryParam(t *testing.T) {
	b := &Bridge{url: EndpointURL("ws://localhost:8000", "abc123")}
	WithToken("secret")(b)

	assert.Equal(t, "ws://localhost:8000/ws/conversations/abc123?token=secret", b.URL())
}

// wsTestServer upgrades connections on the conversation path and hands them to
// serve.
func wsTestServer(t *testing.T, conversationID string, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws/conversations/"+conversationID, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsBase(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectMessages() (MessageHandler, chan *model.Message) {
	ch := make(chan *model.Message, 16)
	return func(msg *model.Message) { ch <- msg }, ch
}

func TestBridgeForwardsRecognizedEvents(t *testing.T) {
	frames := []string{
		`{"type":"new_message","payload":{"id":"m1","content":"hi"}}`,
		`this is not json`,
		`{"type":"typing_indicator","payload":{"id":"x"}}`,
		`{"type":"incoming_message","payload":{"id":"m2","content":"yo"}}`,
	}

	srv := wsTestServer(t, "abc123", func(conn *websocket.Conn) {
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		// Keep the connection open so the bridge does not reconnect and
		// replay.
		time.Sleep(time.Second)
		conn.Close()
	})

	onMessage, received := collectMessages()
	b := Dial(context.Background(), wsBase(srv), "abc123", onMessage)
	defer b.Close()

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			got = append(got, msg.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for forwarded messages")
		}
	}
	assert.Equal(t, []string{"m1", "m2"}, got)

	// Malformed and unrecognized frames were dropped silently.
	select {
	case msg := <-received:
		t.Fatalf("unexpected extra message %q", msg.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBridgeReconnectsAfterDrop(t *testing.T) {
	var conns int32
	srv := wsTestServer(t, "abc123", func(conn *websocket.Conn) {
		n := atomic.AddInt32(&conns, 1)
		if n == 1 {
			// Drop the first connection immediately.
			conn.Close()
			return
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"new_message","payload":{"id":"after-reconnect"}}`))
		time.Sleep(time.Second)
		conn.Close()
	})

	onMessage, received := collectMessages()
	b := Dial(context.Background(), wsBase(srv), "abc123", onMessage,
		WithMaxReconnectWait(100*time.Millisecond))
	defer b.Close()

	select {
	case msg := <-received:
		assert.Equal(t, "after-reconnect", msg.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not reconnect after drop")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))
}

func TestBridgeCloseStopsReconnecting(t *testing.T) {
	srv := wsTestServer(t, "abc123", func(conn *websocket.Conn) {
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	onMessage, _ := collectMessages()
	b := Dial(context.Background(), wsBase(srv), "abc123", onMessage)

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestBridgeCloseWhileServerUnreachable(t *testing.T) {
	onMessage, _ := collectMessages()
	// Nothing is listening on this port.
	b := Dial(context.Background(), "ws://127.0.0.1:1", "abc123", onMessage)

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while dialing")
	}
}
