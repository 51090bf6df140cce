package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachine_CanTransition(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusCompleted, true},
		{StatusDraft, StatusArchived, true},
		{StatusCompleted, StatusDraft, true},
		{StatusCompleted, StatusArchived, true},
		{StatusArchived, StatusDraft, false},
		{StatusArchived, StatusCompleted, false},
		{StatusDraft, StatusDraft, false},
		{"unknown", StatusDraft, false},
		{StatusDraft, "published", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sm.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStateMachine_Queries(t *testing.T) {
	sm := NewStateMachine()

	assert.ElementsMatch(t, []string{StatusCompleted, StatusArchived}, sm.GetAllowedTransitions(StatusDraft))
	assert.Empty(t, sm.GetAllowedTransitions("unknown"))
	assert.True(t, sm.IsTerminal(StatusArchived))
	assert.False(t, sm.IsTerminal(StatusDraft))
	assert.False(t, sm.IsTerminal("unknown"))
	assert.Equal(t, []string{StatusArchived, StatusCompleted, StatusDraft}, sm.Statuses())
}

func TestStateMachine_TableIsCopied(t *testing.T) {
	table := map[string][]string{"a": {"b"}, "b": {}}
	sm := NewStateMachineWithTransitions(table)
	table["a"][0] = "c"

	assert.True(t, sm.CanTransition("a", "b"))

	allowed := sm.GetAllowedTransitions("a")
	allowed[0] = "z"
	assert.True(t, sm.CanTransition("a", "b"))
}
