package workflows

import "sort"

// Valuation lifecycle statuses
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// StateMachine enforces valuation status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with the valuation lifecycle
func NewStateMachine() *StateMachine {
	return NewStateMachineWithTransitions(map[string][]string{
		StatusDraft:     {StatusCompleted, StatusArchived},
		StatusCompleted: {StatusDraft, StatusArchived}, // Reopen for recalculation
		StatusArchived:  {},
	})
}

// NewStateMachineWithTransitions creates a state machine from an explicit table
func NewStateMachineWithTransitions(transitions map[string][]string) *StateMachine {
	table := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		table[from] = append([]string{}, to...)
	}
	return &StateMachine{allowedTransitions: table}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	for _, allowedTo := range sm.allowedTransitions[from] {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return append([]string{}, allowed...)
}

// IsKnown reports whether status appears in the transition table
func (sm *StateMachine) IsKnown(status string) bool {
	_, ok := sm.allowedTransitions[status]
	return ok
}

// IsTerminal reports whether no transition leaves status
func (sm *StateMachine) IsTerminal(status string) bool {
	return sm.IsKnown(status) && len(sm.allowedTransitions[status]) == 0
}

// Statuses returns every known status in sorted order
func (sm *StateMachine) Statuses() []string {
	statuses := make([]string, 0, len(sm.allowedTransitions))
	for s := range sm.allowedTransitions {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	return statuses
}
