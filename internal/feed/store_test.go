package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

func testMessage(id string, sentAt time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: "conv-1",
		Content:        "hello " + id,
		Direction:      model.DirectionInbound,
		ContentType:    model.ContentTypeText,
		SentAt:         sentAt,
		CreatedAt:      sentAt,
		UpdatedAt:      sentAt,
	}
}

func messageIDs(msgs []model.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func TestStoreInsertDeduplicates(t *testing.T) {
	s := newStore()
	base := time.Now()

	assert.True(t, s.insert(testMessage("m1", base)))
	assert.False(t, s.insert(testMessage("m1", base)))
	assert.Equal(t, 1, s.len())
}

func TestStoreOrdersBySentAt(t *testing.T) {
	s := newStore()
	base := time.Now()

	// Arrival order is not chronological order.
	s.insert(testMessage("m2", base.Add(2*time.Second)))
	s.insert(testMessage("m0", base))
	s.insert(testMessage("m1", base.Add(time.Second)))

	assert.Equal(t, []string{"m0", "m1", "m2"}, messageIDs(s.messages()))
	assert.Equal(t, "m0", s.oldestID())
	assert.Equal(t, "m2", s.newestID())
}

func TestStoreOrdersByIDOnEqualTimestamps(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.insert(testMessage("b", base))
	s.insert(testMessage("a", base))

	assert.Equal(t, []string{"a", "b"}, messageIDs(s.messages()))
}

func TestStoreMergeSkipsOverlap(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.insert(testMessage("m1", base.Add(time.Second)))
	s.insert(testMessage("m2", base.Add(2*time.Second)))

	// Older page overlaps on m1, as when a pagination result races a live
	// event.
	added := s.merge([]model.Message{
		testMessage("m0", base),
		testMessage("m1", base.Add(time.Second)),
	})

	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"m0", "m1", "m2"}, messageIDs(s.messages()))
}

func TestStoreEachIDExactlyOnce(t *testing.T) {
	s := newStore()
	base := time.Now()

	// Interleave live inserts and overlapping page merges.
	s.insert(testMessage("m3", base.Add(3*time.Second)))
	s.merge([]model.Message{
		testMessage("m1", base.Add(time.Second)),
		testMessage("m2", base.Add(2*time.Second)),
		testMessage("m3", base.Add(3*time.Second)),
	})
	s.insert(testMessage("m2", base.Add(2*time.Second)))
	s.merge([]model.Message{
		testMessage("m0", base),
		testMessage("m1", base.Add(time.Second)),
	})

	seen := map[string]int{}
	for _, m := range s.messages() {
		seen[m.ID]++
	}
	for id, count := range seen {
		assert.Equalf(t, 1, count, "message %s appears %d times", id, count)
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, messageIDs(s.messages()))
}
