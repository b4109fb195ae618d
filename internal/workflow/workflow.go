// Package workflow is the pure state machine over work item statuses.
// It performs no I/O; persisting a transitioned item is the caller's job.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"rinna/internal/domain"
)

// transitions is the static adjacency table. The happy path runs
// FOUND -> TRIAGED -> TO_DO -> IN_PROGRESS -> IN_TEST -> DONE -> RELEASED;
// CANCELLED is reachable from every state before DONE. RELEASED and
// CANCELLED are terminal.
var transitions = map[domain.WorkflowState][]domain.WorkflowState{
	domain.StateFound:      {domain.StateTriaged, domain.StateCancelled},
	domain.StateTriaged:    {domain.StateToDo, domain.StateCancelled},
	domain.StateToDo:       {domain.StateInProgress, domain.StateCancelled},
	domain.StateInProgress: {domain.StateInTest, domain.StateToDo, domain.StateCancelled},
	domain.StateInTest:     {domain.StateDone, domain.StateInProgress, domain.StateCancelled},
	domain.StateDone:       {domain.StateReleased},
	domain.StateReleased:   {},
	domain.StateCancelled:  {},
}

// InvalidTransitionError reports a rejected workflow transition.
type InvalidTransitionError struct {
	ItemID uuid.UUID
	From   domain.WorkflowState
	To     domain.WorkflowState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid workflow transition for item %s: %s -> %s", e.ItemID, e.From, e.To)
}

// CanTransition reports whether an edge exists from current to target.
// There are no self edges: requesting the current state again is not a
// legal transition.
func CanTransition(current, target domain.WorkflowState) bool {
	for _, s := range transitions[current] {
		if s == target {
			return true
		}
	}
	return false
}

// AvailableTransitions lists the states reachable from current. The
// returned slice is a copy the caller may modify.
func AvailableTransitions(current domain.WorkflowState) []domain.WorkflowState {
	return append([]domain.WorkflowState(nil), transitions[current]...)
}

// Transition moves the item to target, returning the updated copy. It
// fails with *InvalidTransitionError exactly when CanTransition is false.
func Transition(item domain.WorkItem, target domain.WorkflowState, now time.Time) (domain.WorkItem, error) {
	if !CanTransition(item.Status, target) {
		return domain.WorkItem{}, &InvalidTransitionError{ItemID: item.ID, From: item.Status, To: target}
	}
	return item.WithStatus(target, now), nil
}

// IsTerminal reports whether the state has no outgoing edges.
func IsTerminal(state domain.WorkflowState) bool {
	return len(transitions[state]) == 0
}

// IsActive reports whether an item in this state still demands attention
// and counts toward scheduling and cognitive load.
func IsActive(state domain.WorkflowState) bool {
	switch state {
	case domain.StateDone, domain.StateReleased, domain.StateCancelled:
		return false
	default:
		return true
	}
}

// States lists every state in the graph in happy-path order.
func States() []domain.WorkflowState {
	return []domain.WorkflowState{
		domain.StateFound,
		domain.StateTriaged,
		domain.StateToDo,
		domain.StateInProgress,
		domain.StateInTest,
		domain.StateDone,
		domain.StateReleased,
		domain.StateCancelled,
	}
}
