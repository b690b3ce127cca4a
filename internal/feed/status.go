package feed

import (
	"github.com/capitalize-ai/inbox-feed/internal/model"
)

// transitionState tracks the lifecycle of one optimistic status change.
type transitionState int

const (
	// transitionPending means the optimistic value is applied locally and the
	// network call has not resolved.
	transitionPending transitionState = iota
	// transitionCommitted means the server accepted the change.
	transitionCommitted
	// transitionRolledBack means the server rejected the change and the prior
	// status was restored.
	transitionRolledBack
)

// statusTransition is an explicit record of an optimistic status update, so
// the rollback path is testable in isolation instead of living in ad hoc
// booleans.
type statusTransition struct {
	from  model.Status
	to    model.Status
	final model.Status
	state transitionState
}

func newStatusTransition(from, to model.Status) *statusTransition {
	return &statusTransition{from: from, to: to, state: transitionPending}
}

// Commit marks the transition accepted. The server may have reconciled to a
// different status than requested; final records what it settled on.
func (t *statusTransition) Commit(final model.Status) {
	if t.state != transitionPending {
		return
	}
	t.final = final
	t.state = transitionCommitted
}

// Rollback marks the transition rejected and returns the status to restore.
func (t *statusTransition) Rollback() model.Status {
	if t.state == transitionPending {
		t.state = transitionRolledBack
		t.final = t.from
	}
	return t.from
}

// Pending reports whether the network call has not resolved yet.
func (t *statusTransition) Pending() bool {
	return t.state == transitionPending
}
