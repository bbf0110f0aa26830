package timer

import "time"

// Purpose identifies what a room timer drives. A room has at most one
// active timer per purpose.
type Purpose string

const (
	PurposeRound      Purpose = "round"
	PurposeNextRound  Purpose = "next-round"
	PurposeCountdown  Purpose = "countdown"
	PurposeHeadToHead Purpose = "head-to-head"
	PurposeMovieRound Purpose = "movie-round"
	PurposeTurn       Purpose = "turn"
	PurposeEffect     Purpose = "effect"
)

// Scheduler is the timer surface game engines see.
type Scheduler interface {
	// Schedule replaces any active timer of the same purpose.
	Schedule(p Purpose, delay, interval time.Duration, fn func())
	// Cancel is idempotent.
	Cancel(p Purpose)
	CancelAll()
	Active(p Purpose) bool
}

type entry struct {
	id  int64
	gen uint64
}

// Set is one room's view of the shared TimerManager. Every method must be
// called while holding the room's lock, and gate must acquire that same
// lock before running fn. A fire whose generation no longer matches the
// current entry was cancelled or replaced and is dropped.
type Set struct {
	manager *TimerManager
	gate    func(fn func())
	current map[Purpose]entry
	gen     uint64
	onFire  func(p Purpose)
}

func NewSet(manager *TimerManager, gate func(fn func())) *Set {
	return &Set{
		manager: manager,
		gate:    gate,
		current: make(map[Purpose]entry),
	}
}

// OnFire registers a hook run for every accepted fire, used for metrics.
func (s *Set) OnFire(fn func(p Purpose)) {
	s.onFire = fn
}

func (s *Set) Schedule(p Purpose, delay, interval time.Duration, fn func()) {
	s.Cancel(p)

	s.gen++
	gen := s.gen
	id := s.manager.AddTimer(delay, interval, func() {
		s.gate(func() {
			e, ok := s.current[p]
			if !ok || e.gen != gen {
				return
			}
			if interval == 0 {
				delete(s.current, p)
			}
			if s.onFire != nil {
				s.onFire(p)
			}
			fn()
		})
	})
	s.current[p] = entry{id: id, gen: gen}
}

func (s *Set) Cancel(p Purpose) {
	e, ok := s.current[p]
	if !ok {
		return
	}
	delete(s.current, p)
	s.manager.RemoveTimer(e.id)
}

func (s *Set) CancelAll() {
	for p := range s.current {
		s.Cancel(p)
	}
}

func (s *Set) Active(p Purpose) bool {
	_, ok := s.current[p]
	return ok
}

// Len reports the number of active purposes.
func (s *Set) Len() int {
	return len(s.current)
}
