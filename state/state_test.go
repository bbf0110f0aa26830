package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/models"
)

func TestStateMachine_InitialState(t *testing.T) {
	sm := NewBaseStateMachine(models.PhaseLobby)
	assert.Equal(t, models.PhaseLobby, sm.GetCurrentState())
	assert.True(t, sm.Is(models.PhaseGameOver, models.PhaseLobby))
	assert.NoError(t, sm.Require(models.PhaseLobby))
	assert.ErrorIs(t, sm.Require(models.PhasePlaying), models.ErrInvalidState)
}

func TestStateMachine_ChangeStateRunsHooksInOrder(t *testing.T) {
	sm := NewBaseStateMachine(models.PhaseLobby)
	sm.AddTransition(models.PhaseLobby, models.PhasePlaying, nil)

	var calls []string
	sm.OnExit(models.PhaseLobby, func() {
		calls = append(calls, "exit:"+string(sm.GetCurrentState()))
	})
	sm.OnEnter(models.PhasePlaying, func() {
		calls = append(calls, "enter:"+string(sm.GetCurrentState()))
	})

	require.NoError(t, sm.ChangeState(models.PhasePlaying))
	assert.Equal(t, []string{"exit:lobby", "enter:playing"}, calls)
	assert.Equal(t, models.PhasePlaying, sm.GetCurrentState())
}

func TestStateMachine_UnregisteredTransitionRejected(t *testing.T) {
	sm := NewBaseStateMachine(models.PhaseLobby)
	sm.AddTransition(models.PhaseLobby, models.PhasePlaying, nil)

	err := sm.ChangeState(models.PhaseGameOver)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, models.PhaseLobby, sm.GetCurrentState())
}

func TestStateMachine_BlockedConditionSkipsHooks(t *testing.T) {
	sm := NewBaseStateMachine(models.PhasePlaying)
	sm.AddTransition(models.PhasePlaying, models.PhaseRoundComplete, func() bool { return false })

	exited := false
	sm.OnExit(models.PhasePlaying, func() { exited = true })

	assert.ErrorIs(t, sm.ChangeState(models.PhaseRoundComplete), ErrTransitionNotAllowed)
	assert.False(t, exited, "exit hooks must not run for a blocked transition")
	assert.Equal(t, models.PhasePlaying, sm.GetCurrentState())
}
