package room

import (
	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Output is everything one accepted mutation produced: the notification
// events in emission order, then the sanitized state for each member.
type Output struct {
	Events []game.Delivery
	States map[string]any // player id -> snapshot
}

// Broadcaster delivers a room's output to the connections in it.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	Deliver(roomID string, out Output)
}

// Hooks are optional callbacks the manager hands every room. They run with
// the room lock held and must not block.
type Hooks struct {
	// OnFinished sees each finished game once.
	OnFinished func(models.GameResult)
	// OnTimerFire sees every accepted timer fire.
	OnTimerFire func(variant models.Variant, p timer.Purpose)
	// OnChanged sees the room summary after every delivered mutation.
	OnChanged func(Summary)
	// OnRemoved runs after a room left the registry, outside its lock.
	OnRemoved func(roomID string)
}
