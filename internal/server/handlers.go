package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-feed/internal/events"
	"github.com/capitalize-ai/inbox-feed/internal/middleware"
	"github.com/capitalize-ai/inbox-feed/internal/model"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
	"github.com/capitalize-ai/inbox-feed/pkg/metrics"
)

// Handler serves the conversation REST endpoints.
type Handler struct {
	store  *Store
	bus    events.Bus
	logger *logger.Logger
}

// NewHandler creates a Handler over store, publishing live events to bus.
func NewHandler(store *Store, bus events.Bus, log *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		bus:    bus,
		logger: log,
	}
}

// List handles GET /api/v1/conversations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	offset := 0
	var status model.Status

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if st := r.URL.Query().Get("status"); st != "" {
		status = model.Status(st)
		if err := middleware.ValidateStatus(status); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.store.ListConversations(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// UpdateStatus handles PUT /api/v1/conversations/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateStatus(req.Status); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.store.UpdateStatus(ctx, conversationID, req.Status)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	metrics.StatusUpdatesTotal.WithLabelValues(string(req.Status)).Inc()
	writeJSON(w, http.StatusOK, conv)
}

// ListMessages handles GET /api/v1/conversations/{id}/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := model.PageRequest{
		BeforeID:    r.URL.Query().Get("before_id"),
		AfterID:     r.URL.Query().Get("after_id"),
		HighlightID: r.URL.Query().Get("highlight_id"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			page.Limit = parsed
		}
	}

	if _, err := h.store.GetConversation(ctx, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	resp, err := h.store.ListMessages(ctx, conversationID, page)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SendMessage handles POST /api/v1/conversations/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.createMessage(ctx, conversationID, req.Content, model.DirectionOutbound, model.EventTypeNewMessage)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// ReceiveMessage handles POST /api/v1/conversations/{id}/messages/incoming.
// It plays the role of the channel webhook: an inbound message from the
// contact, delivered to subscribers as an incoming_message event.
func (h *Handler) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.createMessage(ctx, conversationID, req.Content, model.DirectionInbound, model.EventTypeIncomingMessage)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) createMessage(ctx context.Context, conversationID, content string, direction model.Direction, eventType model.EventType) (*model.Message, error) {
	msg, err := h.store.AppendMessage(ctx, conversationID, content, direction, time.Time{})
	if err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(direction)).Inc()

	event, err := model.NewLiveEvent(eventType, msg)
	if err == nil {
		if err := h.bus.Publish(ctx, conversationID, event); err != nil {
			h.logger.Warn("failed to publish live event",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}

	return msg, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
