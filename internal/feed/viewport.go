package feed

import (
	"context"
	"sync"
	"time"
)

// ScrollFunc moves the rendered view to the bottom of the message list.
type ScrollFunc func()

// Viewport decides when scroll position should trigger pagination and when the
// view should auto-scroll to the latest message. Positions are in pixels,
// reported by the rendering layer on every scroll event.
type Viewport struct {
	feed           *Feed
	tolerance      float64
	settleDelay    time.Duration
	scrollToBottom ScrollFunc

	mu            sync.Mutex
	autoScrolling bool
	timer         *time.Timer
}

// ViewportOption configures a Viewport.
type ViewportOption func(*Viewport)

// WithTolerance sets the pixel distance from an edge that triggers a fetch.
func WithTolerance(px float64) ViewportOption {
	return func(v *Viewport) { v.tolerance = px }
}

// WithSettleDelay sets how long to wait for layout to settle before
// auto-scrolling to the bottom.
func WithSettleDelay(d time.Duration) ViewportOption {
	return func(v *Viewport) { v.settleDelay = d }
}

// NewViewport wires a Viewport to f. It registers itself as f's update
// callback so non-backfill updates schedule an auto-scroll.
func NewViewport(f *Feed, scrollToBottom ScrollFunc, opts ...ViewportOption) *Viewport {
	v := &Viewport{
		feed:           f,
		tolerance:      100,
		settleDelay:    100 * time.Millisecond,
		scrollToBottom: scrollToBottom,
	}
	for _, opt := range opts {
		opt(v)
	}
	f.SetOnUpdate(v.handleUpdate)
	return v
}

// OnScroll handles one scroll event. offset is the distance from the top of
// the content to the top of the viewport; viewportHeight and contentHeight are
// the visible and total heights. Near-top triggers an older fetch, near-bottom
// a newer fetch. Suppressed entirely while an auto-scroll is in progress so
// the programmatic scroll cannot feed back into a fetch.
func (v *Viewport) OnScroll(ctx context.Context, offset, viewportHeight, contentHeight float64) {
	v.mu.Lock()
	suppressed := v.autoScrolling
	v.mu.Unlock()
	if suppressed {
		return
	}

	if offset <= v.tolerance {
		v.feed.LoadOlder(ctx)
	}

	if contentHeight-(offset+viewportHeight) <= v.tolerance {
		v.feed.LoadNewer(ctx)
	}
}

// handleUpdate reacts to message sequence changes. Backfill keeps the user's
// reading position; anything else scrolls to the latest message after the
// settle delay.
func (v *Viewport) handleUpdate(kind UpdateKind) {
	if kind == UpdateBackfill {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.autoScrolling = true
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = time.AfterFunc(v.settleDelay, func() {
		if v.scrollToBottom != nil {
			v.scrollToBottom()
		}
		v.mu.Lock()
		v.autoScrolling = false
		v.mu.Unlock()
	})
}

// Close stops any pending auto-scroll timer.
func (v *Viewport) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.autoScrolling = false
}
