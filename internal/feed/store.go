// Package feed implements the live conversation feed: an ordered, deduplicated
// message store fed by pagination fetches and live events, plus the viewport
// logic that drives fetches from scroll position.
package feed

import (
	"sort"

	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// store holds messages keyed by ID with a derived chronological view. Network
// arrival order is not trusted; placement comes from SentAt (with ID as a
// tiebreaker so ordering is deterministic).
type store struct {
	byID  map[string]model.Message
	order []string
}

func newStore() *store {
	return &store{byID: make(map[string]model.Message)}
}

func (s *store) len() int {
	return len(s.order)
}

// insert adds msg unless its ID is already present. Returns true if added.
func (s *store) insert(msg model.Message) bool {
	if _, ok := s.byID[msg.ID]; ok {
		return false
	}
	s.byID[msg.ID] = msg

	i := sort.Search(len(s.order), func(i int) bool {
		return !s.less(s.byID[s.order[i]], msg)
	})
	s.order = append(s.order, "")
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = msg.ID
	return true
}

// merge inserts every message not already present and reports how many were
// added. Overlap with existing IDs is expected when a pagination result races
// a live event.
func (s *store) merge(msgs []model.Message) int {
	added := 0
	for _, msg := range msgs {
		if s.insert(msg) {
			added++
		}
	}
	return added
}

// messages returns the chronological view as a copy.
func (s *store) messages() []model.Message {
	out := make([]model.Message, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// oldestID returns the ID at the top of the view, or "" when empty.
func (s *store) oldestID() string {
	if len(s.order) == 0 {
		return ""
	}
	return s.order[0]
}

// newestID returns the ID at the bottom of the view, or "" when empty.
func (s *store) newestID() string {
	if len(s.order) == 0 {
		return ""
	}
	return s.order[len(s.order)-1]
}

func (s *store) less(a, b model.Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return a.ID < b.ID
}
