package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// pagedAPI always reports more history in both directions so viewport
// triggers are observable through listCalls.
func pagedAPI(base time.Time) *fakeAPI {
	return &fakeAPI{
		listFn: func(ctx context.Context, id string, page model.PageRequest) (*model.MessagePage, error) {
			return &model.MessagePage{
				Messages:     []model.Message{testMessage("seed", base)},
				HasMoreOlder: true,
				HasMoreNewer: true,
			}, nil
		},
	}
}

func TestViewportNearTopTriggersOlder(t *testing.T) {
	api := pagedAPI(time.Now())
	f := readyFeed(t, api)
	v := NewViewport(f, nil, WithTolerance(100), WithSettleDelay(time.Hour))
	defer v.Close()
	before := atomic.LoadInt32(&api.listCalls)

	// Well inside the page, neither edge close.
	v.OnScroll(context.Background(), 500, 400, 2000)
	assert.Equal(t, before, atomic.LoadInt32(&api.listCalls))

	// Within tolerance of the top.
	v.OnScroll(context.Background(), 50, 400, 2000)
	assert.Equal(t, before+1, atomic.LoadInt32(&api.listCalls))
}

func TestViewportNearBottomTriggersNewer(t *testing.T) {
	api := pagedAPI(time.Now())
	f := readyFeed(t, api)
	v := NewViewport(f, nil, WithTolerance(100), WithSettleDelay(time.Hour))
	defer v.Close()
	before := atomic.LoadInt32(&api.listCalls)

	// 2000 - (1550 + 400) = 50px from the bottom.
	v.OnScroll(context.Background(), 1550, 400, 2000)
	assert.Equal(t, before+1, atomic.LoadInt32(&api.listCalls))
}

func TestViewportSuppressedDuringAutoScroll(t *testing.T) {
	api := pagedAPI(time.Now())
	f := New("conv-1", api)
	v := NewViewport(f, nil, WithTolerance(100), WithSettleDelay(time.Hour))
	defer v.Close()
	require.NoError(t, f.LoadInitial(context.Background(), ""))
	before := atomic.LoadInt32(&api.listCalls)

	// The initial load scheduled an auto-scroll that has not settled
	// (settle delay is an hour), so scroll events must not trigger fetches.
	v.OnScroll(context.Background(), 0, 400, 2000)
	assert.Equal(t, before, atomic.LoadInt32(&api.listCalls))
}

func TestViewportAutoScrollsAfterAppend(t *testing.T) {
	api := pagedAPI(time.Now())
	f := New("conv-1", api)

	scrolled := make(chan struct{}, 1)
	v := NewViewport(f, func() { scrolled <- struct{}{} },
		WithTolerance(100), WithSettleDelay(5*time.Millisecond))
	defer v.Close()

	require.NoError(t, f.LoadInitial(context.Background(), ""))

	select {
	case <-scrolled:
	case <-time.After(time.Second):
		t.Fatal("expected auto-scroll after non-backfill update")
	}

	// Live append schedules another one.
	f.ApplyLive(&model.Message{ID: "live-1", SentAt: time.Now()})
	select {
	case <-scrolled:
	case <-time.After(time.Second):
		t.Fatal("expected auto-scroll after live append")
	}
}

func TestViewportNoAutoScrollOnBackfill(t *testing.T) {
	api := pagedAPI(time.Now())
	f := New("conv-1", api)

	var scrolls int32
	v := NewViewport(f, func() { atomic.AddInt32(&scrolls, 1) },
		WithTolerance(100), WithSettleDelay(5*time.Millisecond))
	defer v.Close()

	require.NoError(t, f.LoadInitial(context.Background(), ""))
	time.Sleep(50 * time.Millisecond)
	after := atomic.LoadInt32(&scrolls)

	// Backfill keeps the reading position.
	f.LoadOlder(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&scrolls))
}
