package timer

import (
	"sort"
	"time"
)

// ManualTask is a timer registered with a Manual scheduler.
type ManualTask struct {
	Delay    time.Duration
	Interval time.Duration
	fn       func()
}

// Manual is a Scheduler that never fires on its own. Tests drive it with
// Fire, which makes timer-driven transitions deterministic.
type Manual struct {
	tasks map[Purpose]*ManualTask
}

func NewManual() *Manual {
	return &Manual{tasks: make(map[Purpose]*ManualTask)}
}

func (m *Manual) Schedule(p Purpose, delay, interval time.Duration, fn func()) {
	m.tasks[p] = &ManualTask{Delay: delay, Interval: interval, fn: fn}
}

func (m *Manual) Cancel(p Purpose) {
	delete(m.tasks, p)
}

func (m *Manual) CancelAll() {
	m.tasks = make(map[Purpose]*ManualTask)
}

func (m *Manual) Active(p Purpose) bool {
	_, ok := m.tasks[p]
	return ok
}

func (m *Manual) Task(p Purpose) (*ManualTask, bool) {
	t, ok := m.tasks[p]
	return t, ok
}

// Fire runs the timer for p once and reports whether one was active.
// One-shot timers are removed before their callback runs.
func (m *Manual) Fire(p Purpose) bool {
	t, ok := m.tasks[p]
	if !ok {
		return false
	}
	if t.Interval == 0 {
		delete(m.tasks, p)
	}
	t.fn()
	return true
}

// FireUntilStopped fires p repeatedly until it is cancelled or max fires
// have run, returning the number of fires.
func (m *Manual) FireUntilStopped(p Purpose, max int) int {
	n := 0
	for n < max && m.Fire(p) {
		n++
	}
	return n
}

// Pending lists active purposes in sorted order.
func (m *Manual) Pending() []Purpose {
	out := make([]Purpose, 0, len(m.tasks))
	for p := range m.tasks {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
