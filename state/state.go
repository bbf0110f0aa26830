package state

import (
	"fmt"

	"github.com/wfunc/partyserver/models"
)

// StateMachine tracks a room's phase and the transitions allowed out of it.
type StateMachine interface {
	ChangeState(to models.Phase) error
	GetCurrentState() models.Phase
	AddTransition(from, to models.Phase, condition func() bool)
}

// ErrTransitionNotAllowed is returned for unregistered transitions and for
// registered ones whose condition fails.
var ErrTransitionNotAllowed = fmt.Errorf("%w: state transition not allowed", models.ErrInvalidState)

// BaseStateMachine is not safe for concurrent use; the owning room
// serializes every call.
type BaseStateMachine struct {
	currentState models.Phase
	transitions  map[models.Phase]map[models.Phase]func() bool // from -> to -> condition
	onExit       map[models.Phase][]func()
	onEnter      map[models.Phase][]func()
}

func NewBaseStateMachine(initial models.Phase) *BaseStateMachine {
	return &BaseStateMachine{
		currentState: initial,
		transitions:  make(map[models.Phase]map[models.Phase]func() bool),
		onExit:       make(map[models.Phase][]func()),
		onEnter:      make(map[models.Phase][]func()),
	}
}

// ChangeState runs the exit hooks of the current phase before switching and
// the enter hooks of the new one after. Exit hooks are where engines cancel
// the timers that belong to the phase being left.
func (sm *BaseStateMachine) ChangeState(to models.Phase) error {
	conditions, ok := sm.transitions[sm.currentState]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, sm.currentState, to)
	}
	condition, ok := conditions[to]
	if !ok || (condition != nil && !condition()) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, sm.currentState, to)
	}

	for _, fn := range sm.onExit[sm.currentState] {
		fn()
	}
	sm.currentState = to
	for _, fn := range sm.onEnter[to] {
		fn()
	}
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() models.Phase {
	return sm.currentState
}

// Is reports whether the current phase is one of phases.
func (sm *BaseStateMachine) Is(phases ...models.Phase) bool {
	for _, p := range phases {
		if sm.currentState == p {
			return true
		}
	}
	return false
}

// Require returns an InvalidState error unless the current phase is one of
// phases.
func (sm *BaseStateMachine) Require(phases ...models.Phase) error {
	if sm.Is(phases...) {
		return nil
	}
	return fmt.Errorf("%w: not allowed during %s", models.ErrInvalidState, sm.currentState)
}

// AddTransition registers from -> to. A nil condition always allows it.
func (sm *BaseStateMachine) AddTransition(from, to models.Phase, condition func() bool) {
	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.Phase]func() bool)
	}
	sm.transitions[from][to] = condition
}

func (sm *BaseStateMachine) OnExit(p models.Phase, fn func()) {
	sm.onExit[p] = append(sm.onExit[p], fn)
}

func (sm *BaseStateMachine) OnEnter(p models.Phase, fn func()) {
	sm.onEnter[p] = append(sm.onEnter[p], fn)
}
