// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/wfunc/partyserver/clock"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager is the process-wide timer wheel. All rooms share one; each
// room reaches it through its own Set.
type TimerManager struct {
	queue  TimerQueue
	tasks  map[int64]*TimerTask
	mutex  sync.Mutex
	nextId int64
	tick   time.Duration
	clock  clock.Clock
	stop   chan struct{}
	once   sync.Once
}

// NewTimerManager starts a manager that checks for due tasks every tick.
func NewTimerManager(tick time.Duration, clk clock.Clock) *TimerManager {
	manager := newTimerManager(tick, clk)
	go manager.process()
	return manager
}

func newTimerManager(tick time.Duration, clk clock.Clock) *TimerManager {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		tasks:  make(map[int64]*TimerTask),
		nextId: 1,
		tick:   tick,
		clock:  clk,
		stop:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	return manager
}

// AddTimer schedules callback after delay, repeating every interval when
// interval > 0. It returns the id RemoveTimer takes.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  m.clock.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	m.tasks[task.Id] = task
	return task.Id
}

// RemoveTimer is a no-op for unknown or already fired one-shot ids.
func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task, ok := m.tasks[timerId]
	if !ok {
		return
	}
	delete(m.tasks, timerId)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
}

// Len reports the number of scheduled tasks.
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.tasks)
}

func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *TimerManager) process() {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, cb := range m.due(m.clock.Now()) {
				go cb()
			}
		case <-m.stop:
			return
		}
	}
}

// due pops every task whose time has come, requeues repeating ones, and
// returns their callbacks in firing order.
func (m *TimerManager) due(now time.Time) []func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var callbacks []func()
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		callbacks = append(callbacks, task.Callback)

		if task.Interval > 0 {
			task.Execute = task.Execute.Add(task.Interval)
			if task.Execute.Before(now) {
				task.Execute = now.Add(task.Interval)
			}
			heap.Push(&m.queue, task)
		} else {
			delete(m.tasks, task.Id)
		}
	}
	return callbacks
}
