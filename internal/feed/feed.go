package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-feed/internal/model"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
	"github.com/capitalize-ai/inbox-feed/pkg/metrics"
)

// ErrSendInFlight is returned when a send is attempted while a previous one
// has not resolved.
var ErrSendInFlight = errors.New("a send is already in flight")

// ErrNotReady is returned for actions attempted before the initial load
// succeeded.
var ErrNotReady = errors.New("feed is not ready")

// API is the slice of the REST client the feed depends on.
type API interface {
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, page model.PageRequest) (*model.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error)
	UpdateStatus(ctx context.Context, conversationID string, status model.Status) (*model.Conversation, error)
}

// State is the lifecycle of the feed as a whole.
type State int

const (
	// StateInitial means no load has completed yet.
	StateInitial State = iota
	// StateReady means the initial load succeeded and the feed is usable.
	StateReady
	// StateUnavailable means the initial load failed; the view should show a
	// conversation-unavailable screen.
	StateUnavailable
)

// UpdateKind classifies a change to the message sequence, so the viewport can
// tell backfill (older prepend, no auto-scroll) from everything else.
type UpdateKind int

const (
	// UpdateBackfill is an older-page prepend.
	UpdateBackfill UpdateKind = iota
	// UpdateAppend is any non-backfill change: initial load, newer page, live
	// event, or a sent message.
	UpdateAppend
)

// UpdateFunc is notified after the message sequence changes.
type UpdateFunc func(kind UpdateKind)

// Feed owns the message sequence for one conversation view. It is the only
// mutator of its store; the bridge and viewport feed into it through methods.
type Feed struct {
	conversationID string
	api            API
	log            *logger.Logger
	pageSize       int

	mu           sync.Mutex
	store        *store
	state        State
	conv         *model.Conversation
	loadingInit  bool
	loadingOlder bool
	loadingNewer bool
	sending      bool
	hasMoreOlder bool
	hasMoreNewer bool
	lastStatus   *statusTransition

	onUpdate UpdateFunc
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithPageSize sets the pagination page size.
func WithPageSize(n int) FeedOption {
	return func(f *Feed) { f.pageSize = n }
}

// WithFeedLogger sets the feed logger.
func WithFeedLogger(log *logger.Logger) FeedOption {
	return func(f *Feed) { f.log = log }
}

// OnUpdate registers the callback invoked after the sequence changes.
func OnUpdate(fn UpdateFunc) FeedOption {
	return func(f *Feed) { f.onUpdate = fn }
}

// New creates a Feed for conversationID backed by api.
func New(conversationID string, api API, opts ...FeedOption) *Feed {
	f := &Feed{
		conversationID: conversationID,
		api:            api,
		log:            logger.Global().WithConversation(conversationID),
		pageSize:       50,
		store:          newStore(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetOnUpdate replaces the update callback. Intended for wiring the viewport
// after construction.
func (f *Feed) SetOnUpdate(fn UpdateFunc) {
	f.mu.Lock()
	f.onUpdate = fn
	f.mu.Unlock()
}

// LoadInitial fetches the conversation and its first message page. With a
// highlightID the page is centered on that message (deep link); otherwise the
// latest window is loaded. A failure puts the feed in StateUnavailable.
func (f *Feed) LoadInitial(ctx context.Context, highlightID string) error {
	f.mu.Lock()
	if f.loadingInit {
		f.mu.Unlock()
		return nil
	}
	f.loadingInit = true
	f.mu.Unlock()

	conv, err := f.api.GetConversation(ctx, f.conversationID)
	if err == nil {
		var page *model.MessagePage
		page, err = f.api.ListMessages(ctx, f.conversationID, model.PageRequest{
			Limit:       f.pageSize,
			HighlightID: highlightID,
		})
		if err == nil {
			f.mu.Lock()
			f.conv = conv
			f.store = newStore()
			f.store.merge(page.Messages)
			f.hasMoreOlder = page.HasMoreOlder
			f.hasMoreNewer = page.HasMoreNewer
			f.state = StateReady
			f.loadingInit = false
			f.notifyLocked(UpdateAppend)
			f.mu.Unlock()
			metrics.RecordPaginationFetch("initial", "ok")
			return nil
		}
	}

	f.mu.Lock()
	f.state = StateUnavailable
	f.loadingInit = false
	f.mu.Unlock()
	metrics.RecordPaginationFetch("initial", "error")
	f.log.Error("initial load failed", zap.Error(err))
	return err
}

// LoadOlder fetches the page preceding the current oldest message. It is a
// no-op when no more history exists or an older load is already in flight.
// Fetch failures are silent: the sequence is untouched and the loading flag
// cleared.
func (f *Feed) LoadOlder(ctx context.Context) {
	f.mu.Lock()
	if f.state != StateReady || !f.hasMoreOlder || f.loadingOlder {
		f.mu.Unlock()
		return
	}
	f.loadingOlder = true
	before := f.store.oldestID()
	f.mu.Unlock()

	page, err := f.api.ListMessages(ctx, f.conversationID, model.PageRequest{
		Limit:    f.pageSize,
		BeforeID: before,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadingOlder = false

	if err != nil {
		metrics.RecordPaginationFetch("older", "error")
		f.log.Warn("older page fetch failed", zap.Error(err))
		return
	}

	metrics.RecordPaginationFetch("older", "ok")
	f.store.merge(page.Messages)
	f.hasMoreOlder = page.HasMoreOlder
	f.notifyLocked(UpdateBackfill)
}

// LoadNewer fetches the page following the current newest message, with the
// same guards and silent-failure semantics as LoadOlder.
func (f *Feed) LoadNewer(ctx context.Context) {
	f.mu.Lock()
	if f.state != StateReady || !f.hasMoreNewer || f.loadingNewer {
		f.mu.Unlock()
		return
	}
	f.loadingNewer = true
	after := f.store.newestID()
	f.mu.Unlock()

	page, err := f.api.ListMessages(ctx, f.conversationID, model.PageRequest{
		Limit:   f.pageSize,
		AfterID: after,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadingNewer = false

	if err != nil {
		metrics.RecordPaginationFetch("newer", "error")
		f.log.Warn("newer page fetch failed", zap.Error(err))
		return
	}

	metrics.RecordPaginationFetch("newer", "ok")
	f.store.merge(page.Messages)
	f.hasMoreNewer = page.HasMoreNewer
	f.notifyLocked(UpdateAppend)
}

// ApplyLive appends a message delivered over the bridge, unless its ID is
// already present. Covers the race where the same message also arrives via a
// newer-page fetch, in either order.
func (f *Feed) ApplyLive(msg *model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.store.insert(*msg) {
		metrics.RecordLiveEvent("duplicate")
		return
	}
	metrics.RecordLiveEvent("applied")
	f.notifyLocked(UpdateAppend)
}

// Send posts an outbound message. At most one send may be in flight; the
// caller disables its input for the duration. On failure the store is
// unchanged and the error is returned for inline display.
func (f *Feed) Send(ctx context.Context, content string) (*model.Message, error) {
	f.mu.Lock()
	if f.state != StateReady {
		f.mu.Unlock()
		return nil, ErrNotReady
	}
	if f.sending {
		f.mu.Unlock()
		return nil, ErrSendInFlight
	}
	f.sending = true
	f.mu.Unlock()

	msg, err := f.api.SendMessage(ctx, f.conversationID, content)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = false

	if err != nil {
		return nil, err
	}

	// The created message may already have arrived as a live event.
	if f.store.insert(*msg) {
		f.notifyLocked(UpdateAppend)
	}
	return msg, nil
}

// UpdateStatus requests a status change, applying it optimistically. On
// failure the prior status is restored and the error returned so the view can
// surface it.
func (f *Feed) UpdateStatus(ctx context.Context, status model.Status) error {
	f.mu.Lock()
	if f.state != StateReady || f.conv == nil {
		f.mu.Unlock()
		return ErrNotReady
	}
	tr := newStatusTransition(f.conv.Status, status)
	f.conv.Status = status
	f.lastStatus = tr
	f.mu.Unlock()

	conv, err := f.api.UpdateStatus(ctx, f.conversationID, status)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.conv.Status = tr.Rollback()
		return err
	}

	// Reconcile against the server's view of the conversation.
	tr.Commit(conv.Status)
	f.conv = conv
	return nil
}

// Messages returns the current chronological message sequence.
func (f *Feed) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.messages()
}

// Conversation returns the conversation details, or nil before the initial
// load completes.
func (f *Feed) Conversation() *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conv == nil {
		return nil
	}
	conv := *f.conv
	return &conv
}

// State returns the feed lifecycle state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Flags returns the loading and has-more indicators in one snapshot.
func (f *Feed) Flags() Flags {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Flags{
		LoadingInitial: f.loadingInit,
		LoadingOlder:   f.loadingOlder,
		LoadingNewer:   f.loadingNewer,
		Sending:        f.sending,
		HasMoreOlder:   f.hasMoreOlder,
		HasMoreNewer:   f.hasMoreNewer,
	}
}

// Flags is a snapshot of the feed's loading indicators.
type Flags struct {
	LoadingInitial bool
	LoadingOlder   bool
	LoadingNewer   bool
	Sending        bool
	HasMoreOlder   bool
	HasMoreNewer   bool
}

// notifyLocked invokes the update callback. Callers must hold f.mu; the
// callback must not call back into the feed.
func (f *Feed) notifyLocked(kind UpdateKind) {
	if f.onUpdate != nil {
		f.onUpdate(kind)
	}
}
