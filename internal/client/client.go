// Package client provides the REST client for the conversation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/capitalize-ai/inbox-feed/internal/model"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
)

// ErrConversationNotFound is returned when the server reports 404 for a
// conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnauthorized is returned after the sign-out callback has fired on a 401.
var ErrUnauthorized = errors.New("unauthorized")

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token. Intended for tests and
// development.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// authTransport attaches a bearer token to every request and invokes onSignOut
// when the server responds 401. The token provider and sign-out behavior are
// supplied externally; this layer treats both as opaque.
type authTransport struct {
	base      http.RoundTripper
	tokens    TokenSource
	onSignOut func()
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(r.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	clone := r.Clone(r.Context())
	clone.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.onSignOut != nil {
		t.onSignOut()
	}

	return resp, nil
}

// Client calls the conversation REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSignOut sets the callback invoked when any request returns 401.
func WithSignOut(fn func()) Option {
	return func(c *Client) {
		if t, ok := c.http.Transport.(*authTransport); ok {
			t.onSignOut = fn
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// New creates a Client for the API at baseURL. All requests carry a bearer
// token from tokens.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &authTransport{
				base:   http.DefaultTransport,
				tokens: tokens,
			},
		},
		logger: logger.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConversation fetches conversation details.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := c.do(ctx, http.MethodGet, "/api/v1/conversations/"+url.PathEscape(conversationID), nil, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations fetches conversations for the authenticated inbox,
// optionally filtered by status.
func (c *Client) ListConversations(ctx context.Context, status model.Status, limit, offset int) (*model.ListConversationsResponse, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/v1/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp model.ListConversationsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMessages fetches one page of a conversation's history.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page model.PageRequest) (*model.MessagePage, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.BeforeID != "" {
		q.Set("before_id", page.BeforeID)
	}
	if page.AfterID != "" {
		q.Set("after_id", page.AfterID)
	}
	if page.HighlightID != "" {
		q.Set("highlight_id", page.HighlightID)
	}

	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp model.MessagePage
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage sends an outbound message and returns the created record.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	var msg model.Message
	err := c.do(ctx, http.MethodPost,
		"/api/v1/conversations/"+url.PathEscape(conversationID)+"/messages",
		&model.SendMessageRequest{Content: content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus requests a conversation status change and returns the updated
// conversation. The server is the authority on transition legality.
func (c *Client) UpdateStatus(ctx context.Context, conversationID string, status model.Status) (*model.Conversation, error) {
	var conv model.Conversation
	err := c.do(ctx, http.MethodPut,
		"/api/v1/conversations/"+url.PathEscape(conversationID)+"/status",
		&model.UpdateStatusRequest{Status: status}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrConversationNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func readError(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "no error detail"
}
