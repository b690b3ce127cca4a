package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-feed/internal/middleware"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
	"github.com/capitalize-ai/inbox-feed/pkg/metrics"
)

// WSHandler serves GET /ws/conversations/{id}: one push-only WebSocket per
// conversation. Browser WebSocket clients cannot set an Authorization header,
// so the bearer token arrives as a token query parameter.
type WSHandler struct {
	hub       *Hub
	store     *Store
	jwtSecret string
	logger    *logger.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, store *Store, jwtSecret string, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		store:     store,
		jwtSecret: jwtSecret,
		logger:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The REST API already allows any origin; the dashboard is served
			// from a different host than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles the WebSocket upgrade and subscription lifecycle.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	if _, err := middleware.ParseToken(token, h.jwtSecret); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if _, err := h.store.GetConversation(ctx, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	conn, err := h.hub.Join(conversationID, ws)
	if err != nil {
		h.logger.Error("failed to join hub",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		ws.Close()
		return
	}
	defer h.hub.Leave(conn)

	metrics.IncrementWSConnections()
	defer metrics.DecrementWSConnections()

	h.logger.Info("ws subscriber connected", zap.String("conversation_id", conversationID))

	// Push-only connection: the read loop exists to process control frames
	// and detect disconnects. Inbound data frames are discarded.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.logger.Info("ws subscriber disconnected", zap.String("conversation_id", conversationID))
			return
		}
	}
}
